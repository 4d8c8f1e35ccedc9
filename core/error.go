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

package core

import "fmt"

// CoercionError reports a value that could not be converted to its column type.
type CoercionError struct {
	Column string      // Column being coerced
	Type   ColumnType  // Declared column type
	Value  interface{} // Offending value
	Err    error       // Underlying parse error, if any
}

func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coerce %s to %s: value %v (%T): %v", e.Column, e.Type, e.Value, e.Value, e.Err)
	}
	return fmt.Sprintf("coerce %s to %s: unsupported value %v (%T)", e.Column, e.Type, e.Value, e.Value)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}
