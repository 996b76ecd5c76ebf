//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding parameters,
// e.g. CONTACTABACUS_BIN_SIZE.
const EnvPrefix = "CONTACTABACUS"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, Default())
	return v
}

// setDefaults registers every parameter key so that environment variables
// are seen by Unmarshal.
func setDefaults(v *viper.Viper, d Params) {
	m := make(map[string]interface{})
	if err := mapstructure.Decode(d, &m); err != nil {
		panic(err)
	}
	for k, val := range m {
		v.SetDefault(k, val)
	}
	v.SetDefault("selected_chromosomes", []string{})
}

// Load builds the parameters from defaults, the YAML file at path (if not
// empty), CONTACTABACUS_* environment variables and the changed flags of
// flags (if not nil), in increasing precedence. Flag names are the
// parameter keys.
func Load(path string, flags *pflag.FlagSet) (Params, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Params{}, fmt.Errorf("reading parameter file %q: %w", path, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Params{}, err
		}
	}
	return unmarshalAndValidate(v)
}

func unmarshalAndValidate(v *viper.Viper) (Params, error) {
	var p Params
	if err := v.Unmarshal(&p); err != nil {
		return Params{}, fmt.Errorf("decoding parameters: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
