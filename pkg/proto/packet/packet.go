// Package packet contains the packet types of all connection states
// the verification gateway understands.
package packet

import "github.com/Chumb3x/sonar/pkg/util/errs"

// Prebuilt client bound packets are never decoded,
// the gateway only ever writes them.
var errDecodeClientBound = errs.NewSilentErr("decoding client bound packet is not supported")
