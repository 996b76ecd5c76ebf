//
// Copyright © 2015 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package genome

import (
	"bufio"
	"io"
	"os"
	"strings"

	"git.sr.ht/~vejnar/ContactAbacus/lib/errs"
)

// NameNormalizer rewrites contact chromosome names to layout names.
// Substring trailing characters are removed first (e.g. "chr1_m" with
// Substring 2 becomes "chr1"), then Aliases is applied.
type NameNormalizer struct {
	Substring int
	Aliases   map[string]string
}

// Normalize returns the layout name for a contact chromosome name.
func (n NameNormalizer) Normalize(name string) string {
	if n.Substring > 0 {
		if len(name) <= n.Substring {
			name = ""
		} else {
			name = name[:len(name)-n.Substring]
		}
	}
	return MapName(name, n.Aliases)
}

// ParseAliases parses a tabulated two column mapping (contact name, layout name).
func ParseAliases(r io.Reader) (map[string]string, error) {
	m := make(map[string]string)
	tscanner := bufio.NewScanner(r)
	for tscanner.Scan() {
		line := tscanner.Text()
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return m, errs.Malformed("alias line %q: expected 2 columns", line)
		}
		m[fields[0]] = fields[1]
	}
	if err := tscanner.Err(); err != nil {
		return m, err
	}
	return m, nil
}

// OpenAliases reads a chromosome alias file.
func OpenAliases(mpath string) (map[string]string, error) {
	mfos, err := os.Open(mpath)
	if err != nil {
		return nil, err
	}
	defer mfos.Close()
	return ParseAliases(mfos)
}

func MapName(name string, m map[string]string) string {
	if nn, ok := m[name]; ok {
		return nn
	}
	return name
}
