//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Sparkify.
//
// Sparkify is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Sparkify is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Sparkify. If not, see https://www.gnu.org/licenses/.

package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPartition is the directory value used for null or empty partition values.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// PartitionValue is a single key=value path segment.
type PartitionValue struct {
	Column string
	Value  string
}

// needsEscape mirrors the character set Hive escapes in partition paths.
func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

// EscapePartitionValue percent-encodes the characters that cannot appear in
// a partition directory name.
func EscapePartitionValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnescapePartitionValue reverses EscapePartitionValue. Malformed escapes are
// kept literally.
func UnescapePartitionValue(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// FormatPartitionValue renders a typed value as its directory string.
func FormatPartitionValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return DefaultPartition
	case string:
		if val == "" {
			return DefaultPartition
		}
		return EscapePartitionValue(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return EscapePartitionValue(val.UTC().Format("2006-01-02 15:04:05"))
	default:
		return EscapePartitionValue(fmt.Sprintf("%v", val))
	}
}

// PartitionDir builds "k1=v1/k2=v2" for the given values.
func PartitionDir(values []PartitionValue) string {
	parts := make([]string, len(values))
	for i, pv := range values {
		parts[i] = EscapePartitionValue(pv.Column) + "=" + pv.Value
	}
	return strings.Join(parts, "/")
}

// ParsePartitionDir extracts key=value segments from a relative directory
// path. Segments without "=" are ignored. Values come back unescaped and
// DefaultPartition is left for the caller to interpret.
func ParsePartitionDir(dir string) ([]PartitionValue, error) {
	var values []PartitionValue
	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		idx := strings.IndexByte(seg, '=')
		if idx < 0 {
			continue
		}
		if idx == 0 {
			return nil, fmt.Errorf("partition segment %q has no column", seg)
		}
		values = append(values, PartitionValue{
			Column: UnescapePartitionValue(seg[:idx]),
			Value:  UnescapePartitionValue(seg[idx+1:]),
		})
	}
	return values, nil
}
