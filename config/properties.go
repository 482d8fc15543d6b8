package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Properties is the flat string key/value map read by connectors, publishers
// and buffers. Keys are dotted paths such as "dataport.subscription_type".
type Properties map[string]string

// String returns the trimmed value for key, or defaultVal when absent or blank.
func (p Properties) String(key, defaultVal string) string {
	if val, ok := p[key]; ok {
		if val = strings.TrimSpace(val); val != "" {
			return val
		}
	}
	return defaultVal
}

// Int parses key as a base-10 integer.
func (p Properties) Int(key string, defaultVal int) (int, error) {
	raw := p.String(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal, fmt.Errorf("property %s: %q is not an integer", key, raw)
	}
	return v, nil
}

// Float parses key as a float64.
func (p Properties) Float(key string, defaultVal float64) (float64, error) {
	raw := p.String(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("property %s: %q is not a number", key, raw)
	}
	return v, nil
}

// Bool parses key with strconv.ParseBool plus "yes"/"no".
func (p Properties) Bool(key string, defaultVal bool) (bool, error) {
	raw := strings.ToLower(p.String(key, ""))
	switch raw {
	case "":
		return defaultVal, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultVal, fmt.Errorf("property %s: %q is not a boolean", key, raw)
	}
	return v, nil
}

// Seconds parses key as floating-point seconds. Negative values are rejected.
func (p Properties) Seconds(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := p.String(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("property %s: %q is not a number of seconds", key, raw)
	}
	if v < 0 {
		return defaultVal, fmt.Errorf("property %s: negative duration %q", key, raw)
	}
	return time.Duration(v * float64(time.Second)), nil
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overlaid with other.
func (p Properties) Merge(other Properties) Properties {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Sub returns the keys under prefix with the prefix stripped.
func (p Properties) Sub(prefix string) Properties {
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	out := make(Properties)
	for k, v := range p {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			out[rest] = v
		}
	}
	return out
}

// Keys returns the keys in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON accepts string, number and boolean values, and flattens
// nested objects into dotted keys, so that
//
//	{"exec_cxt": {"periodic": {"rate": 100}}}
//
// yields "exec_cxt.periodic.rate" = "100".
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("properties: %w", err)
	}
	out := make(Properties, len(raw))
	if err := flatten(out, "", raw); err != nil {
		return err
	}
	*p = out
	return nil
}

func flatten(out Properties, prefix string, m map[string]any) error {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = val
		case bool:
			out[key] = strconv.FormatBool(val)
		case float64:
			out[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case map[string]any:
			if err := flatten(out, key, val); err != nil {
				return err
			}
		default:
			return fmt.Errorf("properties: %s has unsupported value type %T", key, v)
		}
	}
	return nil
}
