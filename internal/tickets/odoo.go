package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	odooHTTPTimeout = 30 * time.Second
	historyInTicket = 10
)

// OdooCreator opens tickets in an Odoo helpdesk over its JSON-RPC endpoint.
// Authentication is lazy: the uid is fetched on first use and reused until a
// call fails with an access error.
type OdooCreator struct {
	cfg        CreatorConfig
	httpClient *http.Client
	logger     *logrus.Logger

	mu  sync.Mutex
	uid int64
}

func NewOdooCreator(cfg CreatorConfig, logger *logrus.Logger) *OdooCreator {
	return &OdooCreator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: odooHTTPTimeout},
		logger:     logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) String() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

func (c *OdooCreator) call(ctx context.Context, service, method string, args []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("odoo rpc: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("odoo rpc: unexpected status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("odoo rpc: %s", rpcResp.Error.String())
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

func (c *OdooCreator) authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	var uid int64
	err := c.call(ctx, "common", "authenticate",
		[]any{c.cfg.Database, c.cfg.Username, c.cfg.Password, map[string]any{}}, &uid)
	if err != nil {
		return 0, err
	}
	if uid == 0 {
		return 0, fmt.Errorf("odoo authentication failed for %q", c.cfg.Username)
	}
	c.uid = uid
	return uid, nil
}

func (c *OdooCreator) execute(ctx context.Context, uid int64, model, method string, args any, kwargs map[string]any, out any) error {
	callArgs := []any{c.cfg.Database, uid, c.cfg.Password, model, method, args}
	if kwargs != nil {
		callArgs = append(callArgs, kwargs)
	}
	return c.call(ctx, "object", "execute_kw", callArgs, out)
}

// Create opens a helpdesk ticket carrying the issue, the owning agent and the
// last exchanges of the conversation. The reporter is looked up as a partner
// by name and created when absent.
func (c *OdooCreator) Create(ctx context.Context, req CreateRequest) (Ticket, error) {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return Ticket{}, err
	}

	partnerID, err := c.resolvePartner(ctx, uid, req.UserID)
	if err != nil {
		return Ticket{}, err
	}

	var teamIDs []int64
	if err := c.execute(ctx, uid, "helpdesk.team", "search",
		[]any{[]any{}}, map[string]any{"limit": 1}, &teamIDs); err != nil {
		return Ticket{}, err
	}

	name := "Support IT - " + truncateRunes(req.Description, 50)
	data := map[string]any{
		"name":        name,
		"description": buildDescription(req),
		"partner_id":  partnerID,
	}
	if len(teamIDs) > 0 {
		data["team_id"] = teamIDs[0]
	}

	var ticketID int64
	if err := c.execute(ctx, uid, "helpdesk.ticket", "create", []any{data}, nil, &ticketID); err != nil {
		return Ticket{}, err
	}

	c.logger.WithFields(logrus.Fields{
		"ticket_id":  ticketID,
		"session_id": req.SessionID,
		"user_id":    req.UserID,
	}).Info("helpdesk ticket created")

	return Ticket{ID: ticketID, Name: name, Status: "created"}, nil
}

func (c *OdooCreator) resolvePartner(ctx context.Context, uid int64, userID string) (int64, error) {
	var partnerIDs []int64
	err := c.execute(ctx, uid, "res.partner", "search",
		[]any{[]any{[]any{"name", "ilike", userID}}}, map[string]any{"limit": 1}, &partnerIDs)
	if err != nil {
		return 0, err
	}
	if len(partnerIDs) > 0 {
		return partnerIDs[0], nil
	}

	var partnerID int64
	if err := c.execute(ctx, uid, "res.partner", "create",
		[]any{map[string]any{"name": userID}}, nil, &partnerID); err != nil {
		return 0, err
	}
	return partnerID, nil
}

func buildDescription(req CreateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Problème signalé: %s\n\nAgent utilisé: %s\nSession ID: %s\n\nHistorique de la conversation:\n",
		req.Description, req.Agent, req.SessionID)

	turns := req.History
	if len(turns) > historyInTicket {
		turns = turns[:historyInTicket]
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "\nUtilisateur: %s\nAssistant: %s\n", t.User, t.Bot)
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
