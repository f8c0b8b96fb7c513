// Package sdk is a thin HTTP client for the expomatch API server.
//
// It covers the three surfaces the server exposes: running search
// plans, ingesting entity facet texts, and the health endpoint. For
// in-process use without the HTTP layer, import the root expomatch
// package instead.
//
//	client := sdk.New("http://localhost:8080", sdk.WithAPIKey("secret"))
//
//	outcomes, err := client.Search(ctx, sdk.SearchPlan{
//		Queries: []sdk.PlanEntry{
//			{Table: "exhibitors", QueryText: "sustainable packaging"},
//		},
//	})
package sdk
