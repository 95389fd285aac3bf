package compose_test

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/modkit/internal/compose"
	"github.com/roach88/modkit/internal/ir"
)

func Example() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	core := compose.New("core", func() (compose.Contribution, error) {
		return compose.Contribution{
			Capabilities: []compose.Capability{
				compose.Op("coreFn", func(c compose.Call) (ir.IRObject, error) {
					return ir.IRObject{"meta": ir.IRObject{"core": ir.IRBool(true)}}, nil
				}),
			},
		}, nil
	})
	ext := compose.New("extension", func() (compose.Contribution, error) {
		return compose.Contribution{
			Capabilities: []compose.Capability{
				compose.Op("extFn", func(compose.Call) (ir.IRObject, error) { return nil, nil }),
			},
		}, nil
	})

	comp, err := compose.Compose([]*compose.Descriptor{core}, compose.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	b, err := comp.NewBuilder(nil)
	if err != nil {
		panic(err)
	}

	fmt.Println(b.Operations())
	_, err = b.Invoke(ext.Key("extFn"), nil)
	fmt.Println(compose.CodeOf(err))

	b, _ = b.Call("coreFn", nil)
	v, _ := compose.Lookup[bool](b, "meta.core")
	fmt.Println(v)

	// Output:
	// [coreFn]
	// UNSUPPORTED_CAPABILITY
	// true
}
