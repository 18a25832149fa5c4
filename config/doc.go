//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of sragetl.
//
// sragetl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// sragetl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with sragetl. If not, see https://www.gnu.org/licenses/.

// Package config loads the run configuration file (YAML).
//
// Load(path) reads the file, applies defaults (";" delimiter, csv output,
// semantic serialization, skip error strategy, one worker per CPU and four
// in-flight rows per worker), applies command line overrides and then
// validates required fields and enums. engine.fallback_year has no default.
package config
