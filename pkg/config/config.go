// Package config reads and writes the user configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/sidkik/rmasync/pkg/errors"
)

// parseConfigErrTemplate is a template for when the CLI fails to parse yaml
// configuration files. This can happen for a multitude of reasons, including
// extraneous fields and incorrect field types. However, the yaml library
// constructs errors in a way that loses context, and so we can only pass the
// error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

var (
	// fs is overridden by afero.NewMemMapFs() in the tests.
	fs = afero.NewOsFs()

	validate = validator.New()
)

type configInterface interface {
	getVersion() string
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of rma.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

func parseConfig(path string, config configInterface, expVersion string) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if isPathNotFoundError(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if config.getVersion() != expVersion {
		return incompatibleVersionError{path, expVersion, config.getVersion()}
	}

	// Do a strict unmarshal to check for any extra fields. We do a non-strict
	// unmarshal first so that we can catch version errors before erroring on
	// extra fields.
	err = yaml.UnmarshalStrict(configBytes, config, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if err := defaults.Set(config); err != nil {
		return errors.WithContext(err, "set defaults")
	}
	return validateConfig(path, config)
}

// validateConfig checks the `validate` tags of config, and describes every
// invalid field in a single friendly error.
func validateConfig(path string, config interface{}) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithContext(err, "validate")
	}

	var problems []string
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf(" - %s: %s", fe.Field(), describeFieldError(fe)))
	}
	return errors.NewFriendlyError("The configuration file %q is invalid:\n%s",
		path, strings.Join(problems, "\n"))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "hostname", "hostname_port":
		return "must be a host name, optionally followed by a port"
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "contains":
		return fmt.Sprintf("must contain %q", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func isPathNotFoundError(err error) bool {
	if fileErr, ok := err.(*os.PathError); ok &&
		fileErr.Op == "open" && os.IsNotExist(fileErr.Err) {
		return true
	}
	return false
}
