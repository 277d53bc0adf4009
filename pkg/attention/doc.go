// Package attention implements the optional Attention/Router glue: given a
// set of per-agent outputs, it selects one of several weighting mechanisms
// and produces a single consensus output plus normalized attention weights
// identifying the primary contributor. No mechanism performs real
// vector/embedding math; each reduces to a deterministic, named weighting
// function, since the speedup characteristics of the named mechanisms are
// illustrative rather than a performance requirement.
package attention
