/*
Package ports defines the driven ports (interfaces) of the latent space explorer.

These interfaces decouple the controller from concrete artifact transports,
numeric backends and caches, so the same decode path runs against local files,
HTTP servers, in-memory fixtures, Redis or nothing at all.

# Key Interfaces

  - ArtifactSource: fetches the model artifact and its weight shards.
  - ModelLoader: turns an artifact path into a ready Decoder, once.
  - Decoder: the loaded network; a read-only forward pass.
  - FrameCache: optional store of already decoded frames keyed by latent.
*/
package ports
