// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagBinder is implemented by field types that register their own
// flags. [BindFlags] calls AddFlags instead of reading struct tags.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams returns a flag set bound to the tagged fields of
// params, a pointer to a struct. An invalid params struct is a
// programming error and panics.
//
//	var params enableParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet {
//	        return cli.FlagsFromParams("enable", &params)
//	    },
//	    Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
//	        // params is populated here
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag for each tagged field of params, a pointer
// to a struct.
//
//   - flag:"name" or flag:"name,n" sets the long name and an optional
//     one-letter shorthand. Untagged fields are skipped.
//   - desc:"text" is the help text.
//   - default:"value" is parsed as the field's type. []string defaults
//     are comma-separated.
//
// Fields may be string, bool, int, [time.Duration] or []string.
// Embedded structs contribute their own tagged fields.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

// flagTags is the parsed tag set of one field.
type flagTags struct {
	name, shorthand, usage, defaultValue string
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	for index := range structValue.NumField() {
		field := structValue.Type().Field(index)
		value := structValue.Field(index)

		if field.IsExported() && value.CanAddr() {
			if binder, ok := value.Addr().Interface().(FlagBinder); ok {
				binder.AddFlags(flagSet)
				continue
			}
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(value, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		tag, ok := field.Tag.Lookup("flag")
		if !ok || tag == "" {
			continue
		}
		tags := flagTags{usage: field.Tag.Get("desc"), defaultValue: field.Tag.Get("default")}
		tags.name, tags.shorthand, _ = strings.Cut(tag, ",")

		bind, ok := binders[field.Type]
		if !ok {
			return fmt.Errorf("field %s: unsupported type %s for flag --%s", field.Name, field.Type, tags.name)
		}
		if err := bind(value.Addr().Interface(), flagSet, tags); err != nil {
			return fmt.Errorf("field %s: default for --%s: %w", field.Name, tags.name, err)
		}
	}
	return nil
}

// binders registers a flag for a pointer to each supported field type.
var binders = map[reflect.Type]func(target any, flagSet *pflag.FlagSet, tags flagTags) error{
	reflect.TypeFor[string](): func(target any, flagSet *pflag.FlagSet, tags flagTags) error {
		flagSet.StringVarP(target.(*string), tags.name, tags.shorthand, tags.defaultValue, tags.usage)
		return nil
	},
	reflect.TypeFor[bool](): func(target any, flagSet *pflag.FlagSet, tags flagTags) error {
		value, err := parseDefault(tags.defaultValue, strconv.ParseBool)
		flagSet.BoolVarP(target.(*bool), tags.name, tags.shorthand, value, tags.usage)
		return err
	},
	reflect.TypeFor[int](): func(target any, flagSet *pflag.FlagSet, tags flagTags) error {
		value, err := parseDefault(tags.defaultValue, strconv.Atoi)
		flagSet.IntVarP(target.(*int), tags.name, tags.shorthand, value, tags.usage)
		return err
	},
	reflect.TypeFor[time.Duration](): func(target any, flagSet *pflag.FlagSet, tags flagTags) error {
		value, err := parseDefault(tags.defaultValue, time.ParseDuration)
		flagSet.DurationVarP(target.(*time.Duration), tags.name, tags.shorthand, value, tags.usage)
		return err
	},
	reflect.TypeFor[[]string](): func(target any, flagSet *pflag.FlagSet, tags flagTags) error {
		var value []string
		if tags.defaultValue != "" {
			value = strings.Split(tags.defaultValue, ",")
		}
		flagSet.StringSliceVarP(target.(*[]string), tags.name, tags.shorthand, value, tags.usage)
		return nil
	},
}

// parseDefault parses a default tag, returning the zero value for an
// empty tag.
func parseDefault[T any](text string, parse func(string) (T, error)) (T, error) {
	var zero T
	if text == "" {
		return zero, nil
	}
	value, err := parse(text)
	if err != nil {
		return zero, err
	}
	return value, nil
}
