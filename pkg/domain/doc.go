/*
Package domain contains the core value types of the latent space explorer.

It defines the coordinates a pointer produces, the latent vectors fed to the
decoder, the pixel buffers the decoder produces and the load lifecycle of the
model. The package is kept free of I/O and of any numeric backend so that the
controller, the adapters and the tests can share it.

# Key Entities

  - Cursor / LatentVector: a raw pointer coordinate and the vector it maps to.
  - PixelBuffer: a fixed grid of display intensities with exactly-once release.
  - LoadState / Status: the model lifecycle (Uninitialized, Loading, Ready, Failed).
  - LoadError: typed artifact failures (NotFound, Parse).
  - LifecycleHooks: callbacks for observability (state changes, decodes, disposals).
*/
package domain
