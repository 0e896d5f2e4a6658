package chainclienttest

import (
	"log"

	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/communicator"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/localnode"
	"github.com/linera-io/linera-chainclient/pkg/notifier"
	"github.com/linera-io/linera-chainclient/pkg/storage"
	"github.com/linera-io/linera-chainclient/pkg/updater"
)

// Network bundles a fake committee and the shared local node every
// ChainClient under test is constructed against, so scenario tests only
// need to open chains and run operations.
type Network struct {
	Committee    *committee.Committee
	Validators   []*FakeValidatorNode
	Updaters     communicator.ValidatorUpdaters
	Node         *localnode.LocalNode
	Communicator *communicator.Communicator
	Notifier     *notifier.Notifier
}

// NewNetwork builds validatorCount validators of equal weight, all Honest,
// wired into a single committee at epoch 0, sharing one in-memory local
// node. Tests flip individual validators' FaultMode via Network.Validators
// to exercise recovery paths.
func NewNetwork(validatorCount int) (*Network, error) {
	var validators []committee.Validator
	var fakes []*FakeValidatorNode
	updaters := communicator.ValidatorUpdaters{}

	for i := 0; i < validatorCount; i++ {
		priv, pub, err := bls.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		name := validatorName(i)
		validators = append(validators, committee.Validator{
			Name:      name,
			Address:   "fake://" + name,
			PublicKey: *pub,
			Weight:    1,
		})
		fake := NewFakeValidatorNode(priv)
		fakes = append(fakes, fake)
		updaters[name] = updater.New(validators[len(validators)-1], fake, updater.DefaultRetryPolicy(), quietLogger(name))
	}

	cm, err := committee.New(0, validators, nil)
	if err != nil {
		return nil, err
	}

	n := notifier.New()
	node := localnode.New(storage.New(storage.NewMemoryKV()), n)

	return &Network{
		Committee:    cm,
		Validators:   fakes,
		Updaters:     updaters,
		Node:         node,
		Communicator: communicator.New(quietLogger("communicator")),
		Notifier:     n,
	}, nil
}

// SetAllMode flips every validator in the network to mode, for scenarios
// that need the whole committee to behave one way.
func (n *Network) SetAllMode(mode FaultMode) {
	for _, v := range n.Validators {
		v.SetMode(mode)
	}
}

func validatorName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "validator-" + string(letters[i])
	}
	return "validator-" + string(rune('a'+i))
}

func quietLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), "["+prefix+"] ", 0)
}
