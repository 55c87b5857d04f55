package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

// functionLoader is the subset of *redis.Client used to install libraries.
type functionLoader interface {
	FunctionLoadReplace(ctx context.Context, code string) *redis.StringCmd
}

// LoadAll finds every embedded Lua library and loads/replaces it in Redis.
// It returns the library names reported by the server.
func LoadAll(ctx context.Context, rdb functionLoader) ([]string, error) {
	files, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embed dir: %w", err)
	}
	var libs []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return nil, err
		}
		lib, err := rdb.FunctionLoadReplace(ctx, string(code)).Result()
		if err != nil {
			return nil, fmt.Errorf("load lua %s: %w", f.Name(), err)
		}
		libs = append(libs, lib)
		zap.L().Info("lua library loaded", zap.String("file", f.Name()), zap.String("library", lib))
	}
	return libs, nil
}
