//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package output

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteReport writes report as indented JSON to pathReport, or to the
// standard output if pathReport is "-".
func WriteReport(pathReport string, report interface{}) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if pathReport != "-" {
		f, err := os.Create(pathReport)
		if err != nil {
			return err
		}
		if _, err = f.Write(append(out, '\n')); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	fmt.Println(string(out))
	return nil
}
