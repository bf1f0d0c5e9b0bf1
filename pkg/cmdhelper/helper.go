package cmdhelper

import (
	"reflect"

	"github.com/urfave/cli/v3"
)

// SetFlagsCategory sets the category for the given flags.
func SetFlagsCategory(category string, flags ...cli.Flag) {
	for _, flag := range flags {
		// NOTE: maybe panic here when:
		//  * flag is not a pointer to a struct
		//  * flag does not contains a "Category" field
		//  * flag.Category is not a string type field
		reflect.ValueOf(flag).Elem().FieldByName("Category").SetString(category)
	}
}
