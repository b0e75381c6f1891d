package wamp

import "reflect"

// NormalizeDict takes a dict and creates a new normalized dict where all
// map[string]xxx values are converted to Dict.  Values that cannot be
// converted, or are already the correct map type, remain the same.
//
// This is used for initial conversion of HELLO details.  The original dict
// is not mutated.
func NormalizeDict(v interface{}) Dict {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Map {
		return nil
	}
	dict := Dict{}
	for _, key := range val.MapKeys() {
		if key.Kind() == reflect.Interface {
			key = key.Elem()
		}
		if key.Kind() != reflect.String {
			continue
		}
		cv := val.MapIndex(key)
		newVal := NormalizeDict(cv.Interface())
		if newVal == nil {
			if cv.Kind() == reflect.Interface && cv.Elem().Kind() == reflect.Slice {
				cv = cv.Elem()
				listType := reflect.TypeOf(List{})
				if cv.Type().ConvertibleTo(listType) {
					cv = cv.Convert(listType)
				}
			}
			dict[key.String()] = cv.Interface()
			continue
		}
		dict[key.String()] = newVal
	}
	return dict
}

// DictChild returns the child dictionary for the given key, or nil if not
// present.
//
// If the child is not a Dict, an attempt is made to convert it.  The dict
// is not modified.
func DictChild(dict Dict, key string) Dict {
	iface, ok := dict[key]
	if !ok || iface == nil {
		return nil
	}
	child, ok := iface.(Dict)
	if !ok {
		child = NormalizeDict(iface)
		if child == nil {
			return nil
		}
	}
	return child
}
