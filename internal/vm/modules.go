package vm

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/luma-lang/luma/internal/parser"
)

// SourceExt is the extension appended to import paths that lack one.
const SourceExt = ".luma"

// moduleCache is shared between a VM and every child machine it spawns
// for imports, keyed by canonical absolute path.
type moduleCache struct {
	values  map[string]Value
	loading map[string]bool
	chain   []string // Canonical paths currently loading, outermost first

	// preloaded holds precompiled chunks from a bundle, consulted
	// before the filesystem.
	preloaded map[string]*Chunk
}

func newModuleCache() *moduleCache {
	return &moduleCache{
		values:    make(map[string]Value),
		loading:   make(map[string]bool),
		preloaded: make(map[string]*Chunk),
	}
}

// importModule resolves, loads, and runs a module, returning its
// result value. A module runs once per canonical path: later imports
// get the cached value, even through different relative spellings.
// Importing a module that is still loading is a circular-import fault.
func (vm *VM) importModule(path string) (Value, error) {
	canon, err := vm.resolveModulePath(path)
	if err != nil {
		return NullVal(), err
	}

	if v, ok := vm.modules.values[canon]; ok {
		return v, nil
	}
	if vm.modules.loading[canon] {
		return NullVal(), vm.runtimeError(FaultCircularImport,
			"circular import: %s", vm.importChain(canon))
	}

	vm.logger.Debug("loading module", "path", canon)

	chunk, ok := vm.modules.preloaded[canon]
	if !ok {
		data, err := os.ReadFile(canon)
		if err != nil {
			return NullVal(), vm.runtimeError(FaultImport, "cannot read module %q: %v", path, err)
		}

		program, diags := parser.Parse(string(data), canon)
		if len(diags) > 0 {
			return NullVal(), vm.runtimeError(FaultImport,
				"module %q failed to parse: %v", path, diags[0])
		}
		chunk, err = Compile(program)
		if err != nil {
			return NullVal(), vm.runtimeError(FaultImport,
				"module %q failed to compile: %v", path, err)
		}
	}

	vm.modules.loading[canon] = true
	vm.modules.chain = append(vm.modules.chain, canon)

	result, err := vm.childVM().RunChunk(chunk)

	vm.modules.chain = vm.modules.chain[:len(vm.modules.chain)-1]
	delete(vm.modules.loading, canon)

	if err != nil {
		return NullVal(), err
	}
	vm.modules.values[canon] = result
	return result, nil
}

// childVM creates the machine an imported module runs on: fresh
// globals with the natives installed, everything else shared with the
// importer.
func (vm *VM) childVM() *VM {
	child := &VM{
		stack:       make([]Value, initialStackSize),
		frames:      make([]CallFrame, 64),
		globals:     make(map[string]Value),
		out:         vm.out,
		logger:      vm.logger,
		searchPaths: vm.searchPaths,
		tracer:      vm.tracer,
		modules:     vm.modules,
	}
	child.defineNatives()
	return child
}

// resolveModulePath turns an import specifier into the canonical
// absolute path of a loadable module.
func (vm *VM) resolveModulePath(path string) (string, error) {
	canon, ok := resolveImportPath(vm.frame.chunk.File, path, vm.searchPaths, vm.modules.preloaded)
	if !ok {
		return "", vm.runtimeError(FaultImport, "module %q not found", path)
	}
	return canon, nil
}

// resolveImportPath resolves an import specifier against the importing
// file's directory, then each search path. A candidate counts if it is
// preloaded in a bundle or exists on disk.
func resolveImportPath(fromFile, path string, searchPaths []string, preloaded map[string]*Chunk) (string, bool) {
	if filepath.Ext(path) == "" {
		path += SourceExt
	}

	var candidates []string
	if filepath.IsAbs(path) {
		candidates = []string{path}
	} else {
		if dir := filepath.Dir(fromFile); dir != "" {
			candidates = append(candidates, filepath.Join(dir, path))
		}
		for _, sp := range searchPaths {
			candidates = append(candidates, filepath.Join(sp, path))
		}
	}

	for _, cand := range candidates {
		canon, err := filepath.Abs(cand)
		if err != nil {
			continue
		}
		canon = filepath.Clean(canon)
		if _, ok := preloaded[canon]; ok {
			return canon, true
		}
		if _, err := os.Stat(cand); err == nil {
			return canon, true
		}
	}
	return "", false
}

// importChain renders the loading chain closed by the offending module,
// e.g. "a.luma -> b.luma -> a.luma".
func (vm *VM) importChain(canon string) string {
	var parts []string
	seen := false
	for _, p := range vm.modules.chain {
		if p == canon {
			seen = true
		}
		if seen {
			parts = append(parts, filepath.Base(p))
		}
	}
	parts = append(parts, filepath.Base(canon))
	return strings.Join(parts, " -> ")
}
