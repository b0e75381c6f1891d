package wamp

// AsString is an extended type assertion for string.
func AsString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case URI:
		return string(v), true
	}
	return "", false
}

// AsURI is an extended type assertion for URI.
func AsURI(v interface{}) (URI, bool) {
	switch v := v.(type) {
	case URI:
		return v, true
	case string:
		return URI(v), true
	case []byte:
		return URI(string(v)), true
	}
	return URI(""), false
}

// AsInt64 is an extended type assertion for int64.
func AsInt64(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case ID:
		return int64(v), true
	case uint64:
		return int64(v), true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	}
	return 0, false
}

// AsID is an extended type assertion for ID.
func AsID(v interface{}) (ID, bool) {
	if i64, ok := AsInt64(v); ok {
		return ID(i64), true
	}
	return ID(0), false
}

// AsBool is an extended type assertion for bool.
func AsBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// AsDict is an extended type assertion for Dict.
func AsDict(v interface{}) (Dict, bool) {
	n := NormalizeDict(v)
	return n, n != nil
}

// OptionString returns the named value as a string; empty string if
// missing or not a string type.
func OptionString(opts Dict, optionName string) string {
	opt, _ := AsString(opts[optionName])
	return opt
}

// OptionFlag returns the named value as a bool; false if missing or not a
// bool type.
func OptionFlag(opts Dict, optionName string) bool {
	opt, _ := AsBool(opts[optionName])
	return opt
}

// OptionID returns the named value as an ID; ID(0) if missing or not an
// integer type.
func OptionID(opts Dict, optionName string) ID {
	opt, _ := AsID(opts[optionName])
	return opt
}
