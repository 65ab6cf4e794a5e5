package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the column names of T's "db" tags in field order.
// Embedded structs (entity.BaseDocument) are flattened. Fields tagged "-"
// are child collections stored in their own tables and are skipped.
//
//	var orderColumns = ExtractDBColumns[orders.Order]()
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	meta := metadataOf(t)
	if meta == nil {
		return nil
	}
	var cols []string
	for _, f := range meta.fields {
		if f.embedded {
			cols = append(cols, columnsOf(t.Field(f.index).Type)...)
			continue
		}
		cols = append(cols, f.column)
	}
	return cols
}

type fieldInfo struct {
	index    int
	column   string
	embedded bool
}

type typeMetadata struct {
	fields []fieldInfo
}

// typeCache maps reflect.Type to *typeMetadata.
var typeCache sync.Map

// metadataOf returns the cached field layout of a struct type, nil for non-structs.
func metadataOf(t reflect.Type) *typeMetadata {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			meta.fields = append(meta.fields, fieldInfo{index: i, embedded: true})
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: i, column: tag})
	}

	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

// StructToMap converts a struct into column/value pairs for squirrel's SetMap.
// Embedded structs are flattened; pointers are dereferenced.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	meta := metadataOf(rv.Type())
	if meta == nil {
		return nil
	}

	res := make(map[string]any, len(meta.fields))
	for _, f := range meta.fields {
		if f.embedded {
			for k, val := range StructToMap(rv.Field(f.index).Interface()) {
				res[k] = val
			}
			continue
		}
		res[f.column] = rv.Field(f.index).Interface()
	}
	return res
}
