/*
 * Copyright (C) 2025-2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package jsonutil

import (
	"bytes"
	"encoding/json"
)

// Unmarshal parses the JSON-encoded data and stores the result in the value pointed to by v.
func Unmarshal(data []byte, v interface{}) error {
	d := json.NewDecoder(bytes.NewReader(data))
	if err := d.Decode(v); err != nil {
		return err
	}
	return nil
}

// MarshalSilently converts the given value to its JSON representation.
func MarshalSilently(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// MergeObjects merges the src JSON object into dst and returns the merged document.
// Keys present in src overwrite keys in dst; nested objects are replaced, not deep-merged.
// Invalid JSON on either side falls back to the other document.
func MergeObjects(dst, src []byte) []byte {
	dstMap := map[string]interface{}{}
	if len(dst) > 0 {
		if err := Unmarshal(dst, &dstMap); err != nil {
			dstMap = map[string]interface{}{}
		}
	}
	srcMap := map[string]interface{}{}
	if len(src) > 0 {
		if err := Unmarshal(src, &srcMap); err != nil {
			return dst
		}
	}
	for k, v := range srcMap {
		dstMap[k] = v
	}
	return MarshalSilently(dstMap)
}
