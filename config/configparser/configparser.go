/*
 * HUNKVM - Configuration file parser.
 *
 * Copyright 2025, Thomas Krause
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package configparser

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <key> <whitespace> <value>
 * <key> := 'LIBDIR' | 'CACHESIZE' | 'LOGFILE' | 'TRACE'
 * <value> ::= <string> | <number>[K|M] | 'on' | 'off'
 */

type Config struct {
	LibDir    string // directory searched for host libraries
	CacheSize int    // translation cache size in bytes, 0 = default
	LogFile   string
	Trace     bool
}

// Default returns a configuration with the built-in defaults.
func Default() *Config {
	return &Config{LibDir: "libs"}
}

// Load reads a configuration file.
func Load(fname string) (*Config, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected key and value, got %q", lineNumber, line)
		}
		key, value := strings.ToUpper(fields[0]), fields[1]
		switch key {
		case "LIBDIR":
			cfg.LibDir = value
		case "CACHESIZE":
			size, err := parseSize(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			cfg.CacheSize = size
		case "LOGFILE":
			cfg.LogFile = value
		case "TRACE":
			switch strings.ToLower(value) {
			case "on":
				cfg.Trace = true
			case "off":
				cfg.Trace = false
			default:
				return nil, fmt.Errorf("line %d: TRACE must be on or off, got %q", lineNumber, value)
			}
		default:
			return nil, fmt.Errorf("line %d: unknown key %q", lineNumber, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseSize parses a size with an optional K or M suffix.
func parseSize(value string) (int, error) {
	mult := 1
	switch {
	case strings.HasSuffix(strings.ToUpper(value), "K"):
		mult = 1024
		value = value[:len(value)-1]
	case strings.HasSuffix(strings.ToUpper(value), "M"):
		mult = 1024 * 1024
		value = value[:len(value)-1]
	}
	size, err := strconv.Atoi(value)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("invalid size %q", value)
	}
	return size * mult, nil
}
