package util

import "strings"

func MergeMapString(map1, map2 map[string]string) map[string]string {
	if map1 == nil && map2 == nil {
		return nil
	}
	mergedMap := make(map[string]string)

	for key, value := range map1 {
		mergedMap[key] = value
	}

	for key, value := range map2 {
		mergedMap[key] = value
	}

	return mergedMap
}

// SubMapByKeyPrefix collects the entries whose key starts with prefix,
// stripping the prefix from the resulting keys. Keys equal to the bare
// prefix are dropped.
func SubMapByKeyPrefix(m map[string]string, prefix string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	var sub map[string]string
	for key, value := range m {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		if sub == nil {
			sub = make(map[string]string)
		}
		sub[strings.TrimPrefix(key, prefix)] = value
	}
	return sub
}
