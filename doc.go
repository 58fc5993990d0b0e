/*
Package latentscope decodes points of a generative model's 2-D latent space
into images, interactively.

A pointer moving over a scatterplot of known embeddings reports {x, y}
coordinates; each one is decoded by a pretrained TF.js layers-model decoder
into a grayscale frame. The library loads the decoder exactly once, runs one
forward pass per move, releases every intermediate buffer, and keeps the frame
on screen consistent when decodes overlap: the most recent request always
wins and no frame is freed while a view is still drawing it.

# Concept

The Explorer owns a small state machine (Uninitialized, Loading, then Ready or
Failed) and a ledger of frames. Views never free frames themselves: they draw
the frame returned by Frame and acknowledge the paint with Painted, at which
point the frames it replaced are released.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/latentscope"
		"github.com/aretw0/latentscope/pkg/domain"
	)

	func main() {
		exp, err := latentscope.New("models/generatorjs/model.json")
		if err != nil {
			log.Fatal(err)
		}
		defer exp.Close()

		ctx := context.Background()
		if err := exp.Start(ctx); err != nil {
			log.Fatal(err) // explorer is now in domain.StateFailed
		}

		// Pointer moved.
		if _, err := exp.Hover(ctx, domain.Cursor{X: 0.4, Y: -1.1}); err != nil {
			log.Fatal(err)
		}

		// Draw, then acknowledge the paint.
		frame, done := exp.Frame()
		draw(frame)
		done()
		exp.Painted()
	}

Models are read from disk or over HTTP(S) depending on the path; see
WithSource to plug another transport.
*/
package latentscope
