package expomatch

import (
	"fmt"
	"reflect"
	"strings"
)

const tagKey = "expomatch"

// schemaMeta holds parsed struct tag metadata, cached per TypedTable.
type schemaMeta struct {
	typ reflect.Type

	idIdx     int
	masterIdx int // -1 if not present

	// Struct fields that carry facet source texts.
	facetFields []facetMapping
}

type facetMapping struct {
	structIdx int
	facetType string
}

// parseSchema reflects on T and extracts expomatch struct tag metadata.
// Tags take the form `expomatch:"<facet_type>"` for facet text fields,
// `expomatch:",id"` for the entity id, and `expomatch:",master"` for
// the entity-level summary text.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expomatch: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, idIdx: -1, masterIdx: -1}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if err := applyTag(meta, i, f.Name, tag); err != nil {
			return nil, err
		}
	}

	if meta.idIdx == -1 {
		return nil, fmt.Errorf("expomatch: no field with `expomatch:\",id\"` tag in %s", t)
	}
	if len(meta.facetFields) == 0 && meta.masterIdx == -1 {
		return nil, fmt.Errorf("expomatch: no facet or master fields in %s", t)
	}
	return meta, nil
}

// applyTag processes a single struct field's expomatch tag.
func applyTag(meta *schemaMeta, idx int, fieldName, tag string) error {
	parts := strings.SplitN(tag, ",", 2)
	name := parts[0]
	modifier := ""
	if len(parts) == 2 {
		modifier = parts[1]
	}

	switch modifier {
	case "id":
		if meta.idIdx != -1 {
			return fmt.Errorf("expomatch: duplicate id tag on field %s", fieldName)
		}
		meta.idIdx = idx
	case "master":
		if meta.masterIdx != -1 {
			return fmt.Errorf("expomatch: duplicate master tag on field %s", fieldName)
		}
		meta.masterIdx = idx
	case "":
		if name == "" {
			return fmt.Errorf("expomatch: empty facet type on field %s", fieldName)
		}
		meta.facetFields = append(meta.facetFields, facetMapping{structIdx: idx, facetType: name})
	default:
		return fmt.Errorf("expomatch: unknown modifier %q on field %s", modifier, fieldName)
	}
	return nil
}

// entityID extracts the id field value from a typed item.
func (m *schemaMeta) entityID(item any) string {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return fmt.Sprint(v.Field(m.idIdx).Interface())
}

// facetTexts extracts the non-empty facet texts and master text.
func (m *schemaMeta) facetTexts(item any) (map[string]string, string) {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	texts := make(map[string]string, len(m.facetFields))
	for _, ff := range m.facetFields {
		if s := fmt.Sprint(v.Field(ff.structIdx).Interface()); s != "" {
			texts[ff.facetType] = s
		}
	}

	var master string
	if m.masterIdx != -1 {
		master = fmt.Sprint(v.Field(m.masterIdx).Interface())
	}
	return texts, master
}
