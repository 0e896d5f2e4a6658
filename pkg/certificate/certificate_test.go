package certificate

import (
	"testing"

	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

type testValidator struct {
	priv *bls.PrivateKey
	pub  *bls.PublicKey
}

func buildCommittee(t *testing.T, n int) (*committee.Committee, []testValidator) {
	t.Helper()
	var validators []committee.Validator
	var keys []testValidator
	for i := 0; i < n; i++ {
		priv, pub, err := bls.GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		validators = append(validators, committee.Validator{Name: string(rune('a' + i)), PublicKey: *pub, Weight: 1})
		keys = append(keys, testValidator{priv: priv, pub: pub})
	}
	c, err := committee.New(0, validators, nil)
	if err != nil {
		t.Fatalf("committee.New: %v", err)
	}
	return c, keys
}

func TestAggregateReachesQuorum(t *testing.T) {
	c, keys := buildCommittee(t, 4) // quorum = 3
	chain := types.ChainIDFromGenesis("net", 0)
	valueHash := types.Hash{9, 9, 9}

	var votes []Vote
	for _, k := range keys[:3] {
		votes = append(votes, NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, valueHash, k.priv, *k.pub))
	}

	cert, err := Aggregate(c, votes, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if err := cert.Verify(c); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAggregateBelowQuorumFails(t *testing.T) {
	c, keys := buildCommittee(t, 4)
	chain := types.ChainIDFromGenesis("net", 0)
	valueHash := types.Hash{1}

	votes := []Vote{NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, valueHash, keys[0].priv, *keys[0].pub)}

	if _, err := Aggregate(c, votes, nil); err != ErrNoQuorum {
		t.Fatalf("expected ErrNoQuorum, got %v", err)
	}
}

func TestAggregateSplitVoteFails(t *testing.T) {
	c, keys := buildCommittee(t, 4)
	chain := types.ChainIDFromGenesis("net", 0)

	votes := []Vote{
		NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, types.Hash{1}, keys[0].priv, *keys[0].pub),
		NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, types.Hash{2}, keys[1].priv, *keys[1].pub),
	}

	if _, err := Aggregate(c, votes, nil); err != ErrSplitVote {
		t.Fatalf("expected ErrSplitVote, got %v", err)
	}
}

func TestVoteFromOutsideCommitteeRejected(t *testing.T) {
	c, keys := buildCommittee(t, 4)
	chain := types.ChainIDFromGenesis("net", 0)
	valueHash := types.Hash{7}

	outsiderPriv, outsiderPub, err := bls.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	votes := []Vote{
		NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, valueHash, keys[0].priv, *keys[0].pub),
		NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, valueHash, keys[1].priv, *keys[1].pub),
		NewVote(KindValidatedBlock, chain, 1, 0, types.ZeroRound, valueHash, outsiderPriv, *outsiderPub),
	}

	if _, err := Aggregate(c, votes, nil); err != ErrWrongEpoch {
		t.Fatalf("expected ErrWrongEpoch, got %v", err)
	}
}
