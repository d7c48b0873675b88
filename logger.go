package blobstore

import (
	"fmt"

	"go.uber.org/zap"
)

// ArgsToFields converts loosely-typed key/value pairs into zap fields for
// logx.Logger call sites. A trailing key without a value, or a key that is
// not a string, is rendered under a synthetic key rather than dropped.
func ArgsToFields(args ...any) []zap.Field {
	fields := make([]zap.Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		if i+1 >= len(args) {
			fields = append(fields, zap.Any(key, "(missing)"))
			break
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
