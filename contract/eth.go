package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/wojtekolesinski/onchain-battleships/codec"
)

const commonABI = `
	{"type":"function","name":"games","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"}],
	 "outputs":[{"name":"shipSizes","type":"bytes"},{"name":"boardSize","type":"uint256"},{"name":"numRounds","type":"uint256"},
	            {"name":"player1","type":"address"},{"name":"player2","type":"address"},{"name":"state","type":"uint8"},{"name":"winner","type":"address"}]},
	{"type":"function","name":"calculateShipsHash","stateMutability":"view",
	 "inputs":[{"name":"shipSizes","type":"bytes"},{"name":"boardSize","type":"uint256"},{"name":"ships","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"newGame","stateMutability":"nonpayable",
	 "inputs":[{"name":"shipSizes","type":"bytes"},{"name":"boardSize","type":"uint256"},{"name":"numRounds","type":"uint256"},{"name":"shipsHash","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"join","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"shipsHash","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"revealBoard","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"ships","type":"bytes"}],
	 "outputs":[]},
	{"type":"event","name":"NewGame","anonymous":false,
	 "inputs":[{"name":"gameId","type":"uint256","indexed":false}]}`

const pairsABI = `[` + commonABI + `,
	{"type":"function","name":"players","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"player","type":"address"}],
	 "outputs":[{"name":"ships","type":"bytes"},{"name":"moves","type":"bytes"}]},
	{"type":"function","name":"playMove","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"x","type":"uint8"},{"name":"y","type":"uint8"}],
	 "outputs":[]},
	{"type":"function","name":"revealMoves","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"moves","type":"bytes"}],
	 "outputs":[]}]`

const bitmaskABI = `[` + commonABI + `,
	{"type":"function","name":"players","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"player","type":"address"}],
	 "outputs":[{"name":"ships","type":"bytes"},{"name":"moves","type":"uint256"}]},
	{"type":"function","name":"submitMoves","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"moves","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"revealMoves","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"moves","type":"uint256"}],
	 "outputs":[]}]`

// ParseABI returns the contract ABI of a generation.
func ParseABI(enc codec.MoveEncoding) (abi.ABI, error) {
	src := pairsABI
	if enc == codec.EncodingBitmask {
		src = bitmaskABI
	}
	return abi.JSON(strings.NewReader(src))
}

// EthBackend talks to the deployed contract over JSON-RPC.
type EthBackend struct {
	client   *ethclient.Client
	abi      abi.ABI
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	encoding codec.MoveEncoding
}

// DialEth connects to rpcURL and binds the contract at address, signing
// transactions with key.
func DialEth(ctx context.Context, rpcURL, address string, key *ecdsa.PrivateKey, enc codec.MoveEncoding) (*EthBackend, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("contract.DialEth: bad contract address %q", address)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("contract.DialEth: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("contract.DialEth: %w", err)
	}
	parsed, err := ParseABI(enc)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("contract.DialEth: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("contract.DialEth: %w", err)
	}

	return &EthBackend{
		client:   client,
		abi:      parsed,
		contract: bind.NewBoundContract(common.HexToAddress(address), parsed, client, client, client),
		auth:     auth,
		encoding: enc,
	}, nil
}

func (b *EthBackend) Encoding() codec.MoveEncoding { return b.encoding }

// GenesisHash identifies the chain for relay document ids.
func (b *EthBackend) GenesisHash(ctx context.Context) (string, error) {
	header, err := b.client.HeaderByNumber(ctx, big.NewInt(0))
	if err != nil {
		return "", fmt.Errorf("contract.GenesisHash: %w", err)
	}
	return header.Hash().Hex(), nil
}

func (b *EthBackend) Close() {
	b.client.Close()
}

func (b *EthBackend) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("contract.%s: %w", method, err)
	}
	return out, nil
}

func (b *EthBackend) Games(ctx context.Context, id *big.Int) (*GameRecord, error) {
	out, err := b.call(ctx, MethodGames, id)
	if err != nil {
		return nil, err
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("contract.games: unexpected output length %d", len(out))
	}
	rec := &GameRecord{}
	var ok [7]bool
	rec.ShipSizes, ok[0] = out[0].([]byte)
	rec.BoardSize, ok[1] = out[1].(*big.Int)
	rec.NumRounds, ok[2] = out[2].(*big.Int)
	rec.Player1, ok[3] = out[3].(common.Address)
	rec.Player2, ok[4] = out[4].(common.Address)
	rec.State, ok[5] = out[5].(uint8)
	rec.Winner, ok[6] = out[6].(common.Address)
	for i, good := range ok {
		if !good {
			return nil, fmt.Errorf("contract.games: unexpected type %T at output %d", out[i], i)
		}
	}
	return rec, nil
}

func (b *EthBackend) Players(ctx context.Context, id *big.Int, player common.Address) (*PlayerRecord, error) {
	out, err := b.call(ctx, MethodPlayers, id, player)
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("contract.players: unexpected output length %d", len(out))
	}
	rec := &PlayerRecord{}
	var ok bool
	if rec.Ships, ok = out[0].([]byte); !ok {
		return nil, fmt.Errorf("contract.players: unexpected ships type %T", out[0])
	}
	switch moves := out[1].(type) {
	case []byte:
		rec.Moves = moves
	case *big.Int:
		rec.MovesWord = moves
	default:
		return nil, fmt.Errorf("contract.players: unexpected moves type %T", out[1])
	}
	return rec, nil
}

func (b *EthBackend) CalculateShipsHash(ctx context.Context, shipSizes []byte, boardSize *big.Int, ships []byte) ([32]byte, error) {
	out, err := b.call(ctx, MethodCalculateShipsHash, shipSizes, boardSize, ships)
	if err != nil {
		return [32]byte{}, err
	}
	if len(out) != 1 {
		return [32]byte{}, fmt.Errorf("contract.calculateShipsHash: unexpected output length %d", len(out))
	}
	h, ok := out[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("contract.calculateShipsHash: unexpected type %T", out[0])
	}
	return h, nil
}

func (b *EthBackend) Submit(ctx context.Context, method string, args ...any) (Tx, error) {
	opts := *b.auth
	opts.Context = ctx
	tx, err := b.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("contract.%s: %w", method, err)
	}
	return &ethTx{backend: b, tx: tx}, nil
}

type ethTx struct {
	backend *EthBackend
	tx      *types.Transaction
}

func (t *ethTx) Hash() string { return t.tx.Hash().Hex() }

func (t *ethTx) Wait(ctx context.Context) (*Receipt, error) {
	rcpt, err := bind.WaitMined(ctx, t.backend.client, t.tx)
	if err != nil {
		return nil, err
	}
	out := &Receipt{
		TxHash:  t.Hash(),
		Success: rcpt.Status == types.ReceiptStatusSuccessful,
	}

	event := t.backend.abi.Events[EventNewGame]
	for _, l := range rcpt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		var ev struct{ GameId *big.Int }
		if err := t.backend.contract.UnpackLog(&ev, EventNewGame, *l); err != nil {
			return nil, fmt.Errorf("contract.Wait: %w", err)
		}
		out.NewGameID = ev.GameId
		break
	}
	return out, nil
}
