package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EscrowCreateParams describes one EscrowCreate submission. The owner seed
// never leaves the request: signing happens on the rippled node
// (sign-and-submit mode), which is why the owner address must be supplied
// alongside the seed instead of being derived locally.
type EscrowCreateParams struct {
	OwnerSeed    string
	OwnerAddress string
	Destination  string
	AmountXRP    decimal.Decimal
	FinishAfter  time.Time
}

type EscrowCreateResult struct {
	TxHash       string
	EngineResult EngineResult
	// OfferSequence is the account sequence of the EscrowCreate transaction;
	// the finish operation references the escrow by it.
	OfferSequence uint32
	LedgerIndex   int64
}

type EscrowFinishParams struct {
	FinisherSeed    string
	FinisherAddress string
	OwnerAddress    string
	OfferSequence   uint32
}

type EscrowFinishResult struct {
	TxHash       string
	EngineResult EngineResult
}

// Client talks to a rippled node over its websocket API. Each call dials a
// fresh connection, submits, and polls the tx command until the transaction
// appears in a validated ledger, mirroring submit-and-wait semantics. Calls
// block for the ledger close interval (seconds); callers bound them with a
// context deadline.
type Client struct {
	endpoint string
	log      *zap.Logger
}

func NewClient(endpoint string, log *zap.Logger) *Client {
	return &Client{endpoint: endpoint, log: log}
}

type rpcRequest struct {
	ID          int            `json:"id"`
	Command     string         `json:"command"`
	Secret      string         `json:"secret,omitempty"`
	TxJSON      map[string]any `json:"tx_json,omitempty"`
	Transaction string         `json:"transaction,omitempty"`
}

type rpcResponse struct {
	ID           int             `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorCode    string          `json:"error,omitempty"`
	Result       json.RawMessage `json:"result"`
}

type submitResult struct {
	EngineResult string `json:"engine_result"`
	TxJSON       struct {
		Hash     string `json:"hash"`
		Sequence uint32 `json:"Sequence"`
	} `json:"tx_json"`
}

type txResult struct {
	Validated   bool  `json:"validated"`
	LedgerIndex int64 `json:"ledger_index"`
	Meta        struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}

func (c *Client) CreateEscrow(ctx context.Context, p EscrowCreateParams) (*EscrowCreateResult, error) {
	drops, err := XRPToDrops(p.AmountXRP)
	if err != nil {
		return nil, err
	}

	tx := map[string]any{
		"TransactionType": "EscrowCreate",
		"Account":         p.OwnerAddress,
		"Destination":     p.Destination,
		"Amount":          drops,
		"FinishAfter":     RippleTime(p.FinishAfter),
	}

	hash, seq, result, err := c.submitAndWait(ctx, p.OwnerSeed, tx)
	if err != nil {
		return nil, err
	}
	return &EscrowCreateResult{
		TxHash:        hash,
		EngineResult:  result.EngineResult,
		OfferSequence: seq,
		LedgerIndex:   result.LedgerIndex,
	}, nil
}

func (c *Client) FinishEscrow(ctx context.Context, p EscrowFinishParams) (*EscrowFinishResult, error) {
	tx := map[string]any{
		"TransactionType": "EscrowFinish",
		"Account":         p.FinisherAddress,
		"Owner":           p.OwnerAddress,
		"OfferSequence":   p.OfferSequence,
	}

	hash, _, result, err := c.submitAndWait(ctx, p.FinisherSeed, tx)
	if err != nil {
		return nil, err
	}
	return &EscrowFinishResult{TxHash: hash, EngineResult: result.EngineResult}, nil
}

type waitOutcome struct {
	EngineResult EngineResult
	LedgerIndex  int64
}

func (c *Client) submitAndWait(ctx context.Context, secret string, tx map[string]any) (string, uint32, *waitOutcome, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return "", 0, nil, fmt.Errorf("xrpl: dial %s: %w", c.endpoint, err)
	}
	defer conn.Close()

	var sub submitResult
	if err := c.call(ctx, conn, rpcRequest{ID: 1, Command: "submit", Secret: secret, TxJSON: tx}, &sub); err != nil {
		return "", 0, nil, err
	}

	hash := sub.TxJSON.Hash
	seq := sub.TxJSON.Sequence
	preliminary := EngineResult(sub.EngineResult)
	if preliminary == "" {
		preliminary = ResultUnknown
	}

	c.log.Debug("transaction submitted",
		zap.String("hash", hash),
		zap.String("engine_result", preliminary.String()),
	)

	// tem/tef class results never reach a validated ledger; report them
	// without polling.
	if preliminary.Final() {
		return hash, seq, &waitOutcome{EngineResult: preliminary}, nil
	}

	outcome, err := c.waitValidated(ctx, conn, hash)
	if err != nil {
		return hash, seq, nil, err
	}
	return hash, seq, outcome, nil
}

// waitValidated polls the tx command until the transaction shows up in a
// validated ledger or the context expires. A context expiry is a transport
// failure: the outcome of the submission is unknown to the caller.
func (c *Client) waitValidated(ctx context.Context, conn *websocket.Conn, hash string) (*waitOutcome, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	id := 2
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("xrpl: outcome of tx %s unknown: %w", hash, ctx.Err())
		case <-ticker.C:
		}

		var tr txResult
		id++
		err := c.call(ctx, conn, rpcRequest{ID: id, Command: "tx", Transaction: hash}, &tr)
		if err != nil {
			// txnNotFound is expected until the ledger closes.
			continue
		}
		if !tr.Validated {
			continue
		}

		result := EngineResult(tr.Meta.TransactionResult)
		if result == "" {
			result = ResultUnknown
		}
		return &waitOutcome{EngineResult: result, LedgerIndex: tr.LedgerIndex}, nil
	}
}

func (c *Client) call(ctx context.Context, conn *websocket.Conn, req rpcRequest, out any) error {
	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("xrpl: write %s: %w", req.Command, err)
	}

	// Responses are matched by id; skip anything else (server streams etc).
	for {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("xrpl: read %s: %w", req.Command, err)
		}
		if resp.Type != "response" || resp.ID != req.ID {
			continue
		}
		if resp.Status != "success" {
			return fmt.Errorf("xrpl: %s failed: %s (%s)", req.Command, resp.ErrorMessage, resp.ErrorCode)
		}
		return json.Unmarshal(resp.Result, out)
	}
}
