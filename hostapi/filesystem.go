package hostapi

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Filesystem access is sandboxed under Deps.FilesRoot. Guest paths are
// cleaned against a virtual root first, so ".." hops resolve inside the
// sandbox instead of escaping it. Failures are soft: read yields "", the
// mutation calls yield false.
func bindFilesystem(b *binder, d *Deps) {
	b.fn(wireEnv, "file_read", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		data, err := os.ReadFile(sandboxPath(d.FilesRoot, e.str(stack, 0)))
		if err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(string(data))
	}))

	b.fn(wireEnv, "file_write", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		path := sandboxPath(d.FilesRoot, e.str(stack, 0))
		content := e.str(stack, 2)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			stack[0] = 0
			return
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			Logger().Debug("file write failed", zap.String("path", path), zap.Error(err))
			stack[0] = 0
			return
		}
		stack[0] = 1
	}))

	b.fn(wireEnv, "file_append", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		path := sandboxPath(d.FilesRoot, e.str(stack, 0))
		content := e.str(stack, 2)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			stack[0] = 0
			return
		}
		_, werr := f.WriteString(content)
		cerr := f.Close()
		stack[0] = boolWord(werr == nil && cerr == nil)
	}))

	b.fn(wireEnv, "file_delete", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = boolWord(os.Remove(sandboxPath(d.FilesRoot, e.str(stack, 0))) == nil)
	}))

	b.fn(wireEnv, "file_exists", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		_, err := os.Stat(sandboxPath(d.FilesRoot, e.str(stack, 0)))
		stack[0] = boolWord(err == nil)
	}))
}

// sandboxPath resolves a guest path inside root. Cleaning against "/" first
// collapses any ".." prefix, so the join cannot climb out.
func sandboxPath(root, guestPath string) string {
	return filepath.Join(root, filepath.Clean("/"+guestPath))
}
