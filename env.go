/*
Copyright 2024 The hook-sync Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Total hack: allow warnings to be captured in tests.
var envWarnfOverride func(format string, args ...any)

func envWarnf(format string, args ...any) {
	if envWarnfOverride != nil {
		envWarnfOverride(format, args...)
	} else {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// envLookup scans key and then alts, in order, and returns the name and value
// of the last one that is set.  Using an alt name warns about the
// deprecation.
func envLookup(key string, alts ...string) (string, string, bool) {
	winKey, winVal, found := "", "", false
	if val, ok := os.LookupEnv(key); ok {
		winKey, winVal, found = key, val, true
	}
	for _, alt := range alts {
		if val, ok := os.LookupEnv(alt); ok {
			envWarnf("env %s has been deprecated, use %s instead\n", alt, key)
			winKey, winVal, found = alt, val, true
		}
	}
	return winKey, winVal, found
}

func envString(def string, key string, alts ...string) string {
	if _, val, found := envLookup(key, alts...); found {
		return val
	}
	return def
}

func envBoolOrError(def bool, key string, alts ...string) (bool, error) {
	if winKey, val, found := envLookup(key, alts...); found {
		parsed, err := strconv.ParseBool(val)
		if err == nil {
			return parsed, nil
		}
		return false, fmt.Errorf("ERROR: invalid bool env %s=%q: %w", winKey, val, err)
	}
	return def, nil
}
func envBool(def bool, key string, alts ...string) bool {
	val, err := envBoolOrError(def, key, alts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
		return false
	}
	return val
}

func envIntOrError(def int, key string, alts ...string) (int, error) {
	if winKey, val, found := envLookup(key, alts...); found {
		parsed, err := strconv.ParseInt(val, 0, 0)
		if err == nil {
			return int(parsed), nil
		}
		return 0, fmt.Errorf("ERROR: invalid int env %s=%q: %w", winKey, val, err)
	}
	return def, nil
}
func envInt(def int, key string, alts ...string) int {
	val, err := envIntOrError(def, key, alts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
		return 0
	}
	return val
}

func envDurationOrError(def time.Duration, key string, alts ...string) (time.Duration, error) {
	if winKey, val, found := envLookup(key, alts...); found {
		parsed, err := time.ParseDuration(val)
		if err == nil {
			return parsed, nil
		}
		return 0, fmt.Errorf("ERROR: invalid duration env %s=%q: %w", winKey, val, err)
	}
	return def, nil
}
func envDuration(def time.Duration, key string, alts ...string) time.Duration {
	val, err := envDurationOrError(def, key, alts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
		return 0
	}
	return val
}
