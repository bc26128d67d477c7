// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cfgstruct binds the fields of a config struct to command line
// flags. Field names become snake_case flag names, nested structs add a
// dotted prefix, and the help and default struct tags describe each flag.
package cfgstruct

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"
)

// BindOpt customizes Bind.
type BindOpt func(vars map[string]string)

// ConfDir sets the value of $CONFDIR in default values.
func ConfDir(path string) BindOpt {
	return func(vars map[string]string) { vars["CONFDIR"] = os.ExpandEnv(path) }
}

// Prefix places all bound flags under a dotted prefix.
func Prefix(prefix string) BindOpt {
	return func(vars map[string]string) { vars[prefixVar] = prefix }
}

const prefixVar = "\x00prefix"

// Bind registers a flag on flags for every field of the struct config
// points to. Bind panics on unsupported field types.
func Bind(flags *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	vars := map[string]string{}
	for _, opt := range opts {
		opt(vars)
	}

	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %#v; expected pointer to struct", config))
	}
	prefix := vars[prefixVar]
	if prefix != "" {
		prefix += "."
	}
	bindStruct(flags, prefix, ptr.Elem(), vars)
}

func bindStruct(flags *pflag.FlagSet, prefix string, val reflect.Value, vars map[string]string) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		fieldVal := val.Field(i)
		name := prefix + hyphenate(snakeCase(field.Name))
		if field.Anonymous {
			name = strings.TrimSuffix(prefix, ".")
		}

		if fieldVal.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			next := name + "."
			if name == "" {
				next = ""
			}
			bindStruct(flags, next, fieldVal, vars)
			continue
		}

		help := field.Tag.Get("help")
		def := expand(field.Tag.Get("default"), vars)
		addr := fieldVal.Addr().Interface()

		switch ptr := addr.(type) {
		case *string:
			flags.StringVar(ptr, name, def, help)
		case *bool:
			flags.BoolVar(ptr, name, def == "true", help)
		case *int:
			flags.IntVar(ptr, name, int(mustInt(name, def)), help)
		case *int64:
			flags.Int64Var(ptr, name, mustInt(name, def), help)
		case *uint64:
			flags.Uint64Var(ptr, name, uint64(mustInt(name, def)), help)
		case *float64:
			flags.Float64Var(ptr, name, mustFloat(name, def), help)
		case *time.Duration:
			flags.DurationVar(ptr, name, mustDuration(name, def), help)
		case *[]string:
			var values []string
			if def != "" {
				values = strings.Split(def, ",")
			}
			flags.StringSliceVar(ptr, name, values, help)
		default:
			panic(fmt.Sprintf("invalid field type for %s: %s", name, field.Type))
		}
	}
}

func expand(value string, vars map[string]string) string {
	return os.Expand(value, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

func mustInt(name, value string) int64 {
	if value == "" {
		return 0
	}
	v, err := strconv.ParseInt(value, 0, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %s: %v", name, err))
	}
	return v
}

func mustFloat(name, value string) float64 {
	if value == "" {
		return 0
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %s: %v", name, err))
	}
	return v
}

func mustDuration(name, value string) time.Duration {
	if value == "" {
		return 0
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %s: %v", name, err))
	}
	return v
}

func hyphenate(name string) string {
	return strings.Replace(name, "_", "-", -1)
}

// snakeCase turns Dir into deposits_dir and URIBase into uri_base.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
