// Package model holds the executable decoder network: a chain of layers run on
// pkg/tensor buffers, with dense products computed by gonum.
//
// Networks are built by internal/compiler from a TF.js layers-model artifact
// and are immutable afterwards, so one Network serves concurrent Predict calls.
package model
