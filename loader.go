package colly

import (
	"errors"
	"os"
	"plugin"
	"reflect"

	"github.com/silinternational/colly/internal"
)

// Loader loads an exported handler symbol from a compiled handler module.
type Loader interface {
	Load(path, symbol string) (interface{}, error)
}

// PluginLoader loads handlers from Go plugins built with -buildmode=plugin. Plugins
// only export capitalized names, so a lower case symbol is also looked up capitalized.
type PluginLoader struct{}

func (PluginLoader) Load(path, symbol string) (interface{}, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &HandlerNotFoundError{Kind: HandlerModuleNotFound, Path: path, Symbol: symbol, Err: err}
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, &HandlerNotFoundError{Kind: HandlerModuleNotFound, Path: path, Symbol: symbol, Err: err}
	}

	sym, err := p.Lookup(symbol)
	if err != nil && internal.UpperFirst(symbol) != symbol {
		sym, err = p.Lookup(internal.UpperFirst(symbol))
	}
	if err != nil {
		return nil, &HandlerNotFoundError{Kind: HandlerExportNotFound, Path: path, Symbol: symbol, Err: err}
	}

	return derefSymbol(sym), nil
}

// derefSymbol turns a plugin variable, which Lookup returns as a pointer, into its value.
func derefSymbol(sym interface{}) interface{} {
	v := reflect.ValueOf(sym)
	if v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Kind() == reflect.Func {
		return v.Elem().Interface()
	}
	return sym
}

// StaticLoader serves handlers registered in-process, keyed by module path and symbol.
// It backs handlers compiled into the binary and tests.
type StaticLoader map[string]map[string]interface{}

func (l StaticLoader) Load(path, symbol string) (interface{}, error) {
	module, ok := l[path]
	if !ok {
		return nil, &HandlerNotFoundError{Kind: HandlerModuleNotFound, Path: path, Symbol: symbol, Err: os.ErrNotExist}
	}
	sym, ok := module[symbol]
	if !ok {
		return nil, &HandlerNotFoundError{Kind: HandlerExportNotFound, Path: path, Symbol: symbol, Err: errors.New("symbol not registered")}
	}
	return sym, nil
}
