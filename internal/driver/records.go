package driver

// Helpers for pulling typed values out of bolt records. The driver returns
// interface{} values whose concrete types vary by server (int64 vs float64,
// []interface{} element types), so every caller funnels through these.

func AsString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func AsFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}

func AsInt(v interface{}) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	}
	return 0
}

func AsStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func AsVector(v interface{}) []float32 {
	switch raw := v.(type) {
	case []float32:
		return raw
	case []interface{}:
		out := make([]float32, 0, len(raw))
		for _, item := range raw {
			out = append(out, float32(AsFloat(item)))
		}
		return out
	}
	return nil
}
