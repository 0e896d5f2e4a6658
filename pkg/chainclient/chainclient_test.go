package chainclient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linera-io/linera-chainclient/pkg/chainclient"
	"github.com/linera-io/linera-chainclient/pkg/chainclienttest"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/communicator"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/server"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// fakeClock is a manually advanced Clock for round-timeout tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func newOwner(t *testing.T) *bls.PrivateKey {
	t.Helper()
	priv, _, err := bls.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate owner key: %v", err)
	}
	return priv
}

func newClient(t *testing.T, net *chainclienttest.Network, chainID types.ChainID, priv *bls.PrivateKey, adminID *types.ChainID, clock chainclient.Clock) *chainclient.ChainClient {
	t.Helper()
	c, err := chainclient.New(chainID, priv, chainclient.Config{
		Node:         net.Node,
		Communicator: net.Communicator,
		Updaters:     net.Updaters,
		Clock:        clock,
		RoundTimeout: time.Second,
		AdminID:      adminID,
	})
	if err != nil {
		t.Fatalf("chainclient.New: %v", err)
	}
	return c
}

// operationFeePricing is the 0.001-token-per-execution fee policy.
func operationFeePricing() *committee.ResourcePricing {
	return &committee.ResourcePricing{OperationUnitPrice: types.NewAmountFromAtto(1_000_000_000_000_000)}
}

func TestTransferToAccountHappyPath(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	pricedCommittee, err := committee.New(net.Committee.Epoch, net.Committee.Validators, operationFeePricing())
	if err != nil {
		t.Fatalf("build priced committee: %v", err)
	}

	owner := newOwner(t)
	senderID := types.ChainIDFromGenesis("test", 1)
	recipientID := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(senderID, types.SingleOwner(owner.PublicKey().Hex()), 0, pricedCommittee, types.NewAmountFromUnits(4))
	net.Node.InitChain(recipientID, types.SingleOwner("someone-else"), 0, pricedCommittee, types.ZeroAmount())

	clock := newClock()
	sender := newClient(t, net, senderID, owner, nil, clock)

	cert, err := sender.TransferToAccount(context.Background(), recipientID, types.NewAmountFromUnits(3), nil)
	if err != nil {
		t.Fatalf("TransferToAccount: %v", err)
	}
	if cert.Height != 0 {
		t.Fatalf("expected confirmed height 0, got %s", cert.Height)
	}
	if sender.NextBlockHeight() != 1 {
		t.Fatalf("expected next_block_height=1, got %s", sender.NextBlockHeight())
	}

	state, err := sender.QuerySystemApplication()
	if err != nil {
		t.Fatalf("QuerySystemApplication: %v", err)
	}
	wantAfterTransfer := types.NewAmountFromAtto(999_000_000_000_000_000) // 4 - 3 - 0.001 fee
	if state.Balance.Cmp(wantAfterTransfer) != 0 {
		t.Fatalf("expected sender balance 0.999 after the fee, got %s", state.Balance)
	}

	// local_balance runs a second, fee-metered speculative execution over an
	// empty preview block, so it costs another 0.001.
	localBalance, err := sender.LocalBalance()
	if err != nil {
		t.Fatalf("LocalBalance: %v", err)
	}
	wantAfterPreview := types.NewAmountFromAtto(998_000_000_000_000_000)
	if localBalance.Cmp(wantAfterPreview) != 0 {
		t.Fatalf("expected local balance 0.998 after the second speculative execution, got %s", localBalance)
	}

	recipientState, err := net.Node.QueryApplication(recipientID)
	if err != nil {
		t.Fatalf("QueryApplication(recipient): %v", err)
	}
	if !recipientState.Balance.IsZero() {
		t.Fatalf("expected recipient balance untouched before process_inbox, got %s", recipientState.Balance)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	owner := newOwner(t)
	senderID := types.ChainIDFromGenesis("test", 1)
	recipientID := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(senderID, types.SingleOwner(owner.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(3))
	net.Node.InitChain(recipientID, types.SingleOwner("someone-else"), 0, net.Committee, types.ZeroAmount())

	sender := newClient(t, net, senderID, owner, nil, newClock())

	_, err = sender.TransferToAccount(context.Background(), recipientID, types.NewAmountFromUnits(4), nil)
	if !errors.Is(err, chainclient.ErrInsufficientFunding) {
		t.Fatalf("expected ErrInsufficientFunding, got %v", err)
	}
	if sender.NextBlockHeight() != 0 {
		t.Fatalf("expected no height advance, got %s", sender.NextBlockHeight())
	}
}

func TestTransferTooManyFaults(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	net.Validators[0].SetMode(chainclienttest.Offline)
	net.Validators[1].SetMode(chainclienttest.Offline)

	owner := newOwner(t)
	senderID := types.ChainIDFromGenesis("test", 1)
	recipientID := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(senderID, types.SingleOwner(owner.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(4))
	net.Node.InitChain(recipientID, types.SingleOwner("someone-else"), 0, net.Committee, types.ZeroAmount())

	sender := newClient(t, net, senderID, owner, nil, newClock())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = sender.TransferToAccountUnsafeUnconfirmed(ctx, recipientID, types.NewAmountFromUnits(3), nil)
	var commErr *communicator.CommunicationError
	if !errors.As(err, &commErr) {
		t.Fatalf("expected a *communicator.CommunicationError, got %v", err)
	}
	if commErr.Class != communicator.Trusted {
		t.Fatalf("expected Trusted (2 of 4 offline reaches f+1), got %v", commErr.Class)
	}
	if sender.NextBlockHeight() != 0 {
		t.Fatalf("expected no height advance, got %s", sender.NextBlockHeight())
	}
	// The staged block survives the failed round: retrying it is still
	// possible because pending_block.is_some() held onto it.
	if _, err := sender.RetryPendingBlock(ctx); errors.Is(err, chainclient.ErrNoPendingBlock) {
		t.Fatalf("expected the failed round to leave a pending block staged")
	}
}

func TestMetricsRecordQuorumAndValidatorFailures(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics := server.NewMetrics(reg)
	net.Communicator.WithFailureRecorder(metrics)
	net.Validators[0].SetMode(chainclienttest.Offline)

	owner := newOwner(t)
	senderID := types.ChainIDFromGenesis("test", 1)
	recipientID := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(senderID, types.SingleOwner(owner.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(4))
	net.Node.InitChain(recipientID, types.SingleOwner("someone-else"), 0, net.Committee, types.ZeroAmount())

	c, err := chainclient.New(senderID, owner, chainclient.Config{
		Node:         net.Node,
		Communicator: net.Communicator,
		Updaters:     net.Updaters,
		Clock:        newClock(),
		RoundTimeout: time.Second,
		Metrics:      metrics,
	})
	if err != nil {
		t.Fatalf("chainclient.New: %v", err)
	}

	if _, err := c.TransferToAccount(context.Background(), recipientID, types.NewAmountFromUnits(3), nil); err != nil {
		t.Fatalf("TransferToAccount: %v", err)
	}

	if got := testutil.ToFloat64(metrics.BlocksConfirmed.WithLabelValues(senderID.String())); got != 1 {
		t.Fatalf("BlocksConfirmed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CertificatesAgg.WithLabelValues("confirmed_block")); got != 1 {
		t.Fatalf("CertificatesAgg[confirmed_block] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CertificatesAgg.WithLabelValues("validated_block")); got != 1 {
		t.Fatalf("CertificatesAgg[validated_block] = %v, want 1", got)
	}
	// proposeAndCertify drives two quorum rounds (validate, then confirm),
	// each of which reaches quorum despite validator-a being offline.
	if got := testutil.ToFloat64(metrics.QuorumRounds); got != 2 {
		t.Fatalf("QuorumRounds = %v, want 2", got)
	}
	// validator-a's updater is still backing off between retries when the
	// other three reach quorum, so each round cancels it before its failure
	// is reported, and nothing is recorded for it.
	if got := testutil.ToFloat64(metrics.ValidatorFailures.WithLabelValues("validator-a")); got != 0 {
		t.Fatalf("ValidatorFailures[validator-a] = %v, want 0", got)
	}
}

func TestOwnershipHandoff(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	owner := newOwner(t)
	newOwnerKey := newOwner(t)
	chainID := types.ChainIDFromGenesis("test", 1)
	recipientID := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(chainID, types.SingleOwner(owner.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(4))
	net.Node.InitChain(recipientID, types.SingleOwner("someone-else"), 0, net.Committee, types.ZeroAmount())

	client := newClient(t, net, chainID, owner, nil, newClock())

	if _, err := client.TransferOwnership(context.Background(), newOwnerKey.PublicKey().Hex()); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}

	_, err = client.TransferToAccount(context.Background(), recipientID, types.NewAmountFromUnits(1), nil)
	if !errors.Is(err, chainclient.ErrCannotFindKeyForSingleOwnerChain) {
		t.Fatalf("expected ErrCannotFindKeyForSingleOwnerChain, got %v", err)
	}
}

func TestCrossChainBidirectional(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	owner1 := newOwner(t)
	owner2 := newOwner(t)
	chain1 := types.ChainIDFromGenesis("test", 1)
	chain2 := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(chain1, types.SingleOwner(owner1.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(3))
	net.Node.InitChain(chain2, types.SingleOwner(owner2.PublicKey().Hex()), 0, net.Committee, types.ZeroAmount())

	client1 := newClient(t, net, chain1, owner1, nil, newClock())
	client2 := newClient(t, net, chain2, owner2, nil, newClock())

	ctx := context.Background()
	if _, err := client1.TransferToAccount(ctx, chain2, types.NewAmountFromUnits(3), nil); err != nil {
		t.Fatalf("client1 transfer: %v", err)
	}

	balance, err := client2.LocalBalance()
	if err != nil {
		t.Fatalf("client2 LocalBalance: %v", err)
	}
	if balance.Cmp(types.NewAmountFromUnits(3)) != 0 {
		t.Fatalf("expected client2 local balance 3, got %s", balance)
	}

	if _, err := client2.ProcessInbox(ctx); err != nil {
		t.Fatalf("client2 ProcessInbox: %v", err)
	}

	if _, err := client2.TransferToAccount(ctx, chain1, types.NewAmountFromUnits(1), nil); err != nil {
		t.Fatalf("client2 transfer back: %v", err)
	}

	if _, err := client1.ProcessInbox(ctx); err != nil {
		t.Fatalf("client1 ProcessInbox: %v", err)
	}

	balance1, err := client1.SynchronizeFromValidators(ctx)
	if err != nil {
		t.Fatalf("client1 SynchronizeFromValidators: %v", err)
	}
	if balance1.Cmp(types.NewAmountFromUnits(1)) != 0 {
		t.Fatalf("expected client1 balance 1 after sync, got %s", balance1)
	}

	state2, err := client2.QuerySystemApplication()
	if err != nil {
		t.Fatalf("client2 QuerySystemApplication: %v", err)
	}
	if state2.Balance.Cmp(types.NewAmountFromUnits(2)) != 0 {
		t.Fatalf("expected client2 balance 2, got %s", state2.Balance)
	}
}

func TestCommitteeMigration(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	adminOwner := newOwner(t)
	userOwner := newOwner(t)
	adminID := types.ChainIDFromGenesis("test", 0)
	userID := types.ChainIDFromGenesis("test", 1)
	net.Node.InitChain(adminID, types.SingleOwner(adminOwner.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(10))
	net.Node.InitChain(userID, types.SingleOwner(userOwner.PublicKey().Hex()), 0, net.Committee, types.ZeroAmount())

	ctx := context.Background()
	admin := newClient(t, net, adminID, adminOwner, &adminID, newClock())
	user := newClient(t, net, userID, userOwner, &adminID, newClock())

	committeeEpoch1, err := committee.New(1, net.Committee.Validators, nil)
	if err != nil {
		t.Fatalf("build epoch-1 committee: %v", err)
	}
	if _, err := admin.StageNewCommittee(ctx, committeeEpoch1); err != nil {
		t.Fatalf("StageNewCommittee: %v", err)
	}
	if _, err := admin.FinalizeCommittee(ctx); err != nil {
		t.Fatalf("FinalizeCommittee: %v", err)
	}

	transferCert, err := admin.TransferToAccount(ctx, userID, types.NewAmountFromUnits(5), nil)
	if err != nil {
		t.Fatalf("admin transfer: %v", err)
	}
	if err := user.ReceiveCertificate(transferCert); !errors.Is(err, chainclient.ErrCommitteeSynchronizationError) {
		t.Fatalf("expected ErrCommitteeSynchronizationError before subscribing, got %v", err)
	}

	if _, err := user.SubscribeToNewCommittees(ctx); err != nil {
		t.Fatalf("SubscribeToNewCommittees: %v", err)
	}
	if _, err := admin.ProcessInbox(ctx); err != nil {
		t.Fatalf("admin ProcessInbox (subscribe): %v", err)
	}

	committeeEpoch2, err := committee.New(2, net.Committee.Validators, nil)
	if err != nil {
		t.Fatalf("build epoch-2 committee: %v", err)
	}
	if _, err := admin.StageNewCommittee(ctx, committeeEpoch2); err != nil {
		t.Fatalf("StageNewCommittee (2): %v", err)
	}
	if _, err := admin.FinalizeCommittee(ctx); err != nil {
		t.Fatalf("FinalizeCommittee (2): %v", err)
	}

	transferCert2, err := admin.TransferToAccount(ctx, userID, types.NewAmountFromUnits(2), nil)
	if err != nil {
		t.Fatalf("admin transfer (retry): %v", err)
	}
	if err := user.ReceiveCertificate(transferCert2); err != nil {
		t.Fatalf("expected ReceiveCertificate to succeed after migration, got %v", err)
	}
}

func TestLeaderTimeout(t *testing.T) {
	net, err := chainclienttest.NewNetwork(4)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	owner := newOwner(t)
	recipient := newOwner(t)
	chainID := types.ChainIDFromGenesis("test", 1)
	recipientID := types.ChainIDFromGenesis("test", 2)
	net.Node.InitChain(chainID, types.SingleOwner(owner.PublicKey().Hex()), 0, net.Committee, types.NewAmountFromUnits(4))
	net.Node.InitChain(recipientID, types.SingleOwner(recipient.PublicKey().Hex()), 0, net.Committee, types.ZeroAmount())

	clock := newClock()
	client := newClient(t, net, chainID, owner, nil, clock)

	ctx := context.Background()
	if _, err := client.TransferToAccountUnsafeUnconfirmed(ctx, recipientID, types.NewAmountFromUnits(1), nil); err != nil {
		t.Fatalf("stage proposal: %v", err)
	}

	if _, err := client.RequestLeaderTimeout(ctx); !errors.Is(err, chainclient.ErrMissingVoteInValidatorResponse) {
		t.Fatalf("expected ErrMissingVoteInValidatorResponse before the deadline, got %v", err)
	}

	clock.Advance(2 * time.Second)

	timeoutCert, err := client.RequestLeaderTimeout(ctx)
	if err != nil {
		t.Fatalf("RequestLeaderTimeout after deadline: %v", err)
	}
	if timeoutCert.Round.Number != 0 {
		t.Fatalf("expected LeaderTimeout certificate at round 0, got %s", timeoutCert.Round)
	}

	info, err := net.Node.HandleChainInfoQuery(chainID)
	if err != nil {
		t.Fatalf("HandleChainInfoQuery: %v", err)
	}
	if info.Round.Number != 1 {
		t.Fatalf("expected validators to report round 1, got %s", info.Round)
	}
}
