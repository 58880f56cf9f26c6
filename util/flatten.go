package util

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
)

type flattener struct {
	normalized map[string]string
}

// Flatten walks the exported fields of a struct, nested structs and pointers included, and
// returns sorted [path, value] pairs rooted at path. Values with a String or Name method are
// rendered through it, functions by their symbol name and other interfaces by their type.
func Flatten(path string, v interface{}) [][]string {
	f := flattener{normalized: make(map[string]string)}
	f.split(path, reflect.ValueOf(v))

	return f.sorted()
}

func (f *flattener) sorted() [][]string {
	keys := make([]string, 0, len(f.normalized))
	for k := range f.normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, []string{k, f.normalized[k]})
	}

	return pairs
}

func (f *flattener) split(parent string, v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if !v.IsValid() || v.Kind() != reflect.Struct || v.IsZero() {
		return
	}

	types := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanInterface() {
			continue
		}

		path := types.Field(i).Name
		if parent != `` {
			path = parent + `.` + path
		}

		switch {
		case field.Kind() == reflect.Interface && field.IsNil(),
			field.Kind() == reflect.Func && field.IsNil():
			f.normalized[path] = `<nil>`
			continue
		case field.NumMethod() > 0:
			if m := field.MethodByName(`String`); m.IsValid() && m.Type().NumIn() == 0 {
				f.normalized[path] = fmt.Sprint(m.Call(nil)[0].Interface())
				continue
			}
			if m := field.MethodByName(`Name`); m.IsValid() && m.Type().NumIn() == 0 {
				f.normalized[path] = fmt.Sprint(m.Call(nil)[0].Interface())
				continue
			}
		}

		switch field.Kind() {
		case reflect.Ptr, reflect.Struct:
			f.split(path, field)
		default:
			f.normalized[path] = toString(field)
		}
	}
}

func toString(value reflect.Value) string {
	switch value.Kind() {
	case reflect.Slice, reflect.Array:
		if value.Len() > 0 && value.Index(0).Kind() == reflect.Func {
			return fmt.Sprintf(`%d functions`, value.Len())
		}
		return fmt.Sprintf(`%+v`, value)
	case reflect.Map:
		return fmt.Sprintf(`%+v`, value)
	case reflect.Int, reflect.Int32, reflect.Int16, reflect.Int64:
		return fmt.Sprintf(`%d`, value.Int())
	case reflect.Bool:
		return fmt.Sprint(value.Bool())
	case reflect.Float64, reflect.Float32:
		return fmt.Sprint(value.Float())
	case reflect.Func:
		return runtime.FuncForPC(value.Pointer()).Name()
	case reflect.Interface:
		return fmt.Sprintf(`%T`, value.Interface())
	default:
		return value.String()
	}
}
