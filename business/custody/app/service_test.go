package app

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flowsniper/flowsniper/business/custody/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

type fakeKeyStore struct {
	operator *domain.Signer
	extra    []*domain.Signer
}

func (f *fakeKeyStore) LoadOrCreateOperator() (*domain.Signer, error) { return f.operator, nil }
func (f *fakeKeyStore) Signers() ([]*domain.Signer, error)            { return f.extra, nil }

type fakeTokens struct {
	balances   map[common.Address]*big.Int
	allowance  *big.Int
	pullErr    error
	pulled     *big.Int
	pullCalled int
}

func (f *fakeTokens) BalanceOf(_ context.Context, _, account common.Address) (*big.Int, error) {
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeTokens) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	if f.allowance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeTokens) PullFunds(_ context.Context, _ common.Address, _ *domain.Signer, _ common.Address, amount *big.Int) (common.Hash, error) {
	f.pullCalled++
	if f.pullErr != nil {
		return common.Hash{}, f.pullErr
	}
	f.pulled = new(big.Int).Set(amount)
	return common.HexToHash("0xabc"), nil
}

func newTestManager(t *testing.T, tokens *fakeTokens) (*CustodyManager, *domain.Signer) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	operator := domain.NewSigner(key)

	m, err := NewCustodyManager(&fakeKeyStore{operator: operator}, tokens, testutil.NopLogger())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m, operator
}

func pairOwner(t *testing.T, m *CustodyManager) common.Address {
	t.Helper()
	ownerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	owner := crypto.PubkeyToAddress(ownerKey.PublicKey)

	msg := domain.PairingMessage(owner, m.Operator())
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), ownerKey)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Pair(context.Background(), owner, sig); err != nil {
		t.Fatalf("pairing failed: %v", err)
	}
	return owner
}

func TestCustodyManager_Pair_RejectsBadSignature(t *testing.T) {
	m, _ := newTestManager(t, &fakeTokens{})

	strangerKey, _ := crypto.GenerateKey()
	ownerKey, _ := crypto.GenerateKey()
	owner := crypto.PubkeyToAddress(ownerKey.PublicKey)

	msg := domain.PairingMessage(owner, m.Operator())
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), strangerKey)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Pair(context.Background(), owner, sig)
	if apperror.GetCode(err) != apperror.CodePairingFailed {
		t.Fatalf("expected PAIRING_FAILED, got %v", err)
	}
	if _, paired := m.Owner(); paired {
		t.Fatal("failed pairing must not record an owner")
	}
}

func TestCustodyManager_EnsureFunds(t *testing.T) {
	amount := big.NewInt(10_000_000) // 10 USDT

	t.Run("operator already funded", func(t *testing.T) {
		tokens := &fakeTokens{}
		m, operator := newTestManager(t, tokens)
		tokens.balances = map[common.Address]*big.Int{operator.Address(): big.NewInt(20_000_000)}

		if err := m.EnsureFunds(context.Background(), common.HexToAddress("0x1"), amount); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tokens.pullCalled != 0 {
			t.Fatal("funded operator must not trigger a pull")
		}
	})

	t.Run("shortfall pulled from owner", func(t *testing.T) {
		tokens := &fakeTokens{allowance: big.NewInt(50_000_000)}
		m, operator := newTestManager(t, tokens)
		tokens.balances = map[common.Address]*big.Int{operator.Address(): big.NewInt(4_000_000)}
		pairOwner(t, m)

		if err := m.EnsureFunds(context.Background(), common.HexToAddress("0x1"), amount); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := big.NewInt(6_000_000)
		if tokens.pulled == nil || tokens.pulled.Cmp(want) != 0 {
			t.Fatalf("expected pull of %s, got %v", want, tokens.pulled)
		}
	})

	t.Run("no owner refuses", func(t *testing.T) {
		tokens := &fakeTokens{}
		m, _ := newTestManager(t, tokens)

		err := m.EnsureFunds(context.Background(), common.HexToAddress("0x1"), amount)
		if apperror.GetCode(err) != apperror.CodeOwnerNotPaired {
			t.Fatalf("expected OWNER_NOT_PAIRED, got %v", err)
		}
	})

	t.Run("allowance short refuses without pulling", func(t *testing.T) {
		tokens := &fakeTokens{allowance: big.NewInt(1_000_000)}
		m, operator := newTestManager(t, tokens)
		tokens.balances = map[common.Address]*big.Int{operator.Address(): big.NewInt(4_000_000)}
		pairOwner(t, m)

		err := m.EnsureFunds(context.Background(), common.HexToAddress("0x1"), amount)
		if apperror.GetCode(err) != apperror.CodeInsufficientAllowance {
			t.Fatalf("expected INSUFFICIENT_ALLOWANCE, got %v", err)
		}
		if tokens.pullCalled != 0 {
			t.Fatal("short allowance must refuse before pulling")
		}
	})

	t.Run("exact balance plus allowance boundary", func(t *testing.T) {
		tokens := &fakeTokens{allowance: big.NewInt(6_000_000)}
		m, operator := newTestManager(t, tokens)
		tokens.balances = map[common.Address]*big.Int{operator.Address(): big.NewInt(4_000_000)}
		pairOwner(t, m)

		if err := m.EnsureFunds(context.Background(), common.HexToAddress("0x1"), amount); err != nil {
			t.Fatalf("boundary case must pass: %v", err)
		}
	})
}

func TestCustodyManager_ResolveSigner(t *testing.T) {
	extraKey, _ := crypto.GenerateKey()
	extra := domain.NewSigner(extraKey)

	key, _ := crypto.GenerateKey()
	operator := domain.NewSigner(key)

	m, err := NewCustodyManager(&fakeKeyStore{operator: operator, extra: []*domain.Signer{extra}}, &fakeTokens{}, testutil.NopLogger())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("exact match wins", func(t *testing.T) {
		s, err := m.ResolveSigner(extra.Address())
		if err != nil {
			t.Fatal(err)
		}
		if s.Address() != extra.Address() {
			t.Fatalf("expected %s, got %s", extra.Address().Hex(), s.Address().Hex())
		}
	})

	t.Run("unknown preference falls back to operator", func(t *testing.T) {
		s, err := m.ResolveSigner(common.HexToAddress("0xdead"))
		if err != nil {
			t.Fatal(err)
		}
		if s.Address() != operator.Address() {
			t.Fatalf("expected operator, got %s", s.Address().Hex())
		}
	})

	t.Run("zero preference resolves operator", func(t *testing.T) {
		s, err := m.ResolveSigner(common.Address{})
		if err != nil {
			t.Fatal(err)
		}
		if s.Address() != operator.Address() {
			t.Fatalf("expected operator, got %s", s.Address().Hex())
		}
	})
}
