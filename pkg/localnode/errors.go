package localnode

import "errors"

var (
	// ErrChainNotFound is returned for any operation against a chain id the
	// local node has never seen initialized.
	ErrChainNotFound = errors.New("localnode: chain not found")
	// ErrStaleCertificate is returned when a certificate's height does not
	// extend the chain's current confirmed height by exactly one.
	ErrStaleCertificate = errors.New("localnode: certificate height is not the next height")
	// ErrUnexpectedCertificateKind is returned when a certificate of the
	// wrong kind is presented to an operation that requires a specific one.
	ErrUnexpectedCertificateKind = errors.New("localnode: unexpected certificate kind")
)
