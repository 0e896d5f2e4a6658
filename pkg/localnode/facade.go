package localnode

import (
	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/execution"
	"github.com/linera-io/linera-chainclient/pkg/notifier"
	"github.com/linera-io/linera-chainclient/pkg/storage"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// LocalNode is the façade the rest of the client talks to; it owns a
// Worker and exposes the local-node operations plus the inbox and
// committee accessors the chain client drives.
type LocalNode struct {
	worker *Worker
}

func New(store *storage.Store, n *notifier.Notifier) *LocalNode {
	return &LocalNode{worker: NewWorker(store, n)}
}

func (ln *LocalNode) InitChain(chainID types.ChainID, ownership types.Ownership, epoch types.Epoch, c *committee.Committee, openingBalance types.Amount) {
	ln.worker.InitChain(chainID, ownership, epoch, c, openingBalance)
}

func (ln *LocalNode) ExecuteSpeculatively(chainID types.ChainID, block types.Block) (*types.ExecutedBlock, error) {
	return ln.worker.ExecuteSpeculatively(chainID, block)
}

func (ln *LocalNode) HandleBlockProposal(chainID types.ChainID, proposal *certificate.BlockProposal) error {
	return ln.worker.HandleBlockProposal(chainID, proposal)
}

func (ln *LocalNode) HandleCertificate(chainID types.ChainID, cert *certificate.Certificate) error {
	return ln.worker.HandleCertificate(chainID, cert)
}

func (ln *LocalNode) HandleChainInfoQuery(chainID types.ChainID) (*ChainInfo, error) {
	return ln.worker.ChainInfoQuery(chainID)
}

func (ln *LocalNode) QueryApplication(chainID types.ChainID) (execution.State, error) {
	return ln.worker.QueryApplication(chainID)
}

func (ln *LocalNode) Subscribe(chainID types.ChainID) (<-chan notifier.Notification, func()) {
	return ln.worker.Subscribe(chainID)
}

func (ln *LocalNode) EnqueueIncoming(chainID types.ChainID, msg types.IncomingMessage) error {
	return ln.worker.EnqueueIncoming(chainID, msg)
}

func (ln *LocalNode) DrainInbox(chainID types.ChainID) ([]types.IncomingMessage, error) {
	return ln.worker.DrainInbox(chainID)
}

func (ln *LocalNode) PeekInbox(chainID types.ChainID) ([]types.IncomingMessage, error) {
	return ln.worker.PeekInbox(chainID)
}

func (ln *LocalNode) Committee(chainID types.ChainID) (*committee.Committee, error) {
	return ln.worker.Committee(chainID)
}

func (ln *LocalNode) SetCommittee(chainID types.ChainID, c *committee.Committee) error {
	return ln.worker.SetCommittee(chainID, c)
}
