package lua

import (
	"fmt"
	"os"

	"github.com/Shopify/go-lua"
)

// VM is a sandboxed Lua interpreter for server hook scripts. It is not
// safe for concurrent use; the simulation goroutine owns it.
type VM struct {
	state *lua.State
}

func NewVM() *VM {
	state := lua.NewState()
	openSafeLibraries(state)
	return &VM{state: state}
}

// openSafeLibraries loads the standard libraries and then removes the ones
// that reach outside the sandbox.
func openSafeLibraries(state *lua.State) {
	lua.OpenLibraries(state)

	for _, name := range []string{"io", "os", "debug", "dofile", "loadfile"} {
		state.PushNil()
		state.SetGlobal(name)
	}
}

func (vm *VM) LoadFile(path string) error {
	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load lua string: %w", err)
	}
	return nil
}

// HasFunction reports whether the script defines a global function name.
func (vm *VM) HasFunction(name string) bool {
	vm.state.Global(name)
	isFunc := vm.state.IsFunction(-1)
	vm.state.Pop(1)
	return isFunc
}

// CallFunction invokes a global function with string, int, float64 or bool
// arguments and discards any return values.
func (vm *VM) CallFunction(name string, args ...interface{}) error {
	vm.state.Global(name)
	if !vm.state.IsFunction(-1) {
		vm.state.Pop(1)
		return fmt.Errorf("global %s is not a function", name)
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			vm.state.PushString(v)
		case int:
			vm.state.PushInteger(v)
		case float64:
			vm.state.PushNumber(v)
		case bool:
			vm.state.PushBoolean(v)
		default:
			vm.state.Pop(1)
			return fmt.Errorf("unsupported argument type: %T", arg)
		}
	}

	if err := vm.state.ProtectedCall(len(args), 0, 0); err != nil {
		return fmt.Errorf("lua function %s: %w", name, err)
	}

	return nil
}

// RegisterFunction exposes a Go function as a Lua global.
func (vm *VM) RegisterFunction(name string, fn lua.Function) {
	vm.state.Register(name, fn)
}

func (vm *VM) State() *lua.State {
	return vm.state
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
