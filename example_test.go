package latentscope_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/testutils"
	"github.com/aretw0/latentscope/pkg/domain"
)

// ExampleNew_memory demonstrates how to run an Explorer against an in-memory
// artifact source. This is useful for testing or embedded scenarios.
func ExampleNew_memory() {
	fx := testutils.BuildDecoder(testutils.NopTB(), testutils.DecoderSpec{
		Name:  "digits",
		Shape: domain.Shape{Rows: 4, Cols: 4},
	})
	src := fx.Source("models/digits/model.json")

	exp, err := latentscope.New("models/digits/model.json", latentscope.WithSource(src))
	if err != nil {
		log.Fatal(err)
	}
	defer exp.Close()

	ctx := context.Background()
	if err := exp.Start(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println(exp.Name, exp.Status().State, exp.Latent())

	accepted, err := exp.Hover(ctx, domain.Cursor{X: 0.12345, Y: 1})
	if err != nil {
		log.Fatal(err)
	}
	frame, done := exp.Frame()
	fmt.Println(accepted, frame.Shape, frame.Seq, exp.Latent())
	done()

	fmt.Println("released:", exp.Painted())
	// Output:
	// digits ready (-2.500, -2.500)
	// true 4x4 2 (0.123, 1.000)
	// released: 1
}
