package rpc

import (
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"

	"keydrop/core/types"
	"keydrop/crypto"
	"keydrop/native/airdrop"
	"keydrop/native/common"
)

const (
	codeAirdropInvalidParams = -32061
	codeAirdropUnknownKey    = -32062
	codeAirdropForbidden     = -32063
	codeAirdropPaused        = -32064
	codeAirdropInternal      = -32065
)

type sponsorParams struct {
	Caller    string `json:"caller"`
	Deposit   string `json:"deposit"`
	PublicKey string `json:"publicKey"`
}

type claimParams struct {
	SignerKey   string `json:"signerKey"`
	Destination string `json:"destination"`
}

type createAndClaimParams struct {
	SignerKey    string `json:"signerKey"`
	NewAccountID string `json:"newAccountId"`
	NewPublicKey string `json:"newPublicKey"`
}

type createAccountParams struct {
	Caller       string `json:"caller"`
	Deposit      string `json:"deposit"`
	NewAccountID string `json:"newAccountId"`
	NewPublicKey string `json:"newPublicKey"`
}

type limitedAccessKeyParams struct {
	PublicKey string   `json:"publicKey"`
	Allowance string   `json:"allowance"`
	Receiver  string   `json:"receiverId"`
	Methods   []string `json:"methodNames"`
}

type createAdvancedParams struct {
	Caller            string                   `json:"caller"`
	Deposit           string                   `json:"deposit"`
	NewAccountID      string                   `json:"newAccountId"`
	FullAccessKeys    []string                 `json:"fullAccessKeys"`
	LimitedAccessKeys []limitedAccessKeyParams `json:"limitedAccessKeys"`
	ContractBytes     string                   `json:"contractBytes"`
}

type keyParams struct {
	PublicKey string `json:"publicKey"`
}

type okResult struct {
	OK bool `json:"ok"`
}

type balanceResult struct {
	Balance string `json:"balance"`
}

type keyInformationResult struct {
	Exists  bool   `json:"exists"`
	Balance string `json:"balance,omitempty"`
}

func (s *Server) handleSponsor(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params sponsorParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := types.ParseAccountID(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parsePositiveBigInt(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := crypto.ParsePublicKey(params.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	call := airdrop.Call{Caller: caller, Deposit: deposit}
	invokeErr := s.env.Invoke(call, func() error {
		return s.engine.Sponsor(call, key)
	})
	if invokeErr != nil {
		s.writeEngineError(w, req, invokeErr)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

// capabilityCall admits a claim-path request only when the signer key holds
// an unrevoked access key whose allow-list covers the entry point, then runs
// it as the contract calling itself. This mirrors how the host converts
// function-call-key transactions into self calls.
func (s *Server) capabilityCall(w http.ResponseWriter, req *RPCRequest, signer string, method string) (airdrop.Call, bool) {
	key, err := crypto.ParsePublicKey(signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return airdrop.Call{}, false
	}
	permitted, err := s.env.AccessKeyPermits(key, method)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeAirdropInternal, "internal_error", err.Error())
		return airdrop.Call{}, false
	}
	if !permitted {
		writeError(w, http.StatusForbidden, req.ID, codeAirdropForbidden, "forbidden", "no access key for signer")
		return airdrop.Call{}, false
	}
	return airdrop.Call{Caller: s.env.Self(), SignerKey: key, Deposit: big.NewInt(0)}, true
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	call, ok := s.capabilityCall(w, req, params.SignerKey, airdrop.MethodClaim)
	if !ok {
		return
	}
	invokeErr := s.env.Invoke(call, func() error {
		return s.engine.Claim(call, types.AccountID(params.Destination))
	})
	if invokeErr != nil {
		s.writeEngineError(w, req, invokeErr)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleCreateAccountAndClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createAndClaimParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	newKey, err := crypto.ParsePublicKey(params.NewPublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	call, ok := s.capabilityCall(w, req, params.SignerKey, airdrop.MethodCreateAccountAndClaim)
	if !ok {
		return
	}
	invokeErr := s.env.Invoke(call, func() error {
		return s.engine.CreateAccountAndClaim(call, types.AccountID(params.NewAccountID), newKey)
	})
	if invokeErr != nil {
		s.writeEngineError(w, req, invokeErr)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createAccountParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := types.ParseAccountID(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parsePositiveBigInt(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	newKey, err := crypto.ParsePublicKey(params.NewPublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	call := airdrop.Call{Caller: caller, Deposit: deposit}
	invokeErr := s.env.Invoke(call, func() error {
		return s.engine.CreateAccount(call, types.AccountID(params.NewAccountID), newKey)
	})
	if invokeErr != nil {
		s.writeEngineError(w, req, invokeErr)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleCreateAccountAdvanced(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createAdvancedParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := types.ParseAccountID(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parsePositiveBigInt(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	options, err := parseCreateOptions(&params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	call := airdrop.Call{Caller: caller, Deposit: deposit}
	invokeErr := s.env.Invoke(call, func() error {
		return s.engine.CreateAccountAdvanced(call, types.AccountID(params.NewAccountID), options)
	})
	if invokeErr != nil {
		s.writeEngineError(w, req, invokeErr)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func parseCreateOptions(params *createAdvancedParams) (airdrop.CreateAccountOptions, error) {
	options := airdrop.CreateAccountOptions{}
	for _, encoded := range params.FullAccessKeys {
		key, err := crypto.ParsePublicKey(encoded)
		if err != nil {
			return options, err
		}
		options.FullAccessKeys = append(options.FullAccessKeys, key)
	}
	for _, limited := range params.LimitedAccessKeys {
		key, err := crypto.ParsePublicKey(limited.PublicKey)
		if err != nil {
			return options, err
		}
		allowance, err := parsePositiveBigInt(limited.Allowance)
		if err != nil {
			return options, err
		}
		receiver, err := types.ParseAccountID(limited.Receiver)
		if err != nil {
			return options, err
		}
		options.LimitedAccessKeys = append(options.LimitedAccessKeys, airdrop.LimitedAccessKey{
			PublicKey: key,
			Allowance: allowance,
			Receiver:  receiver,
			Methods:   limited.Methods,
		})
	}
	if params.ContractBytes != "" {
		code, err := base64.StdEncoding.DecodeString(params.ContractBytes)
		if err != nil {
			return options, err
		}
		options.ContractBytes = code
	}
	return options, nil
}

func (s *Server) handleGetKeyBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params keyParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := crypto.ParsePublicKey(params.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.engine.GetKeyBalance(key)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Balance: balance.String()})
}

func (s *Server) handleGetKeyInformation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params keyParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := crypto.ParsePublicKey(params.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
		return
	}
	info, ok := s.engine.GetKeyInformation(key)
	if !ok {
		writeResult(w, req.ID, keyInformationResult{Exists: false})
		return
	}
	writeResult(w, req.ID, keyInformationResult{Exists: true, Balance: info.Balance.String()})
}

func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	switch {
	case errors.Is(err, airdrop.ErrUnknownKey):
		writeError(w, http.StatusNotFound, req.ID, codeAirdropUnknownKey, "unknown_key", err.Error())
	case errors.Is(err, airdrop.ErrUnauthorizedCaller):
		writeError(w, http.StatusForbidden, req.ID, codeAirdropForbidden, "forbidden", err.Error())
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, req.ID, codeAirdropPaused, "module_paused", err.Error())
	case errors.Is(err, airdrop.ErrDepositTooLow),
		errors.Is(err, airdrop.ErrEmptyOptions),
		errors.Is(err, types.ErrInvalidAccountID),
		errors.Is(err, crypto.ErrInvalidPublicKey):
		writeError(w, http.StatusBadRequest, req.ID, codeAirdropInvalidParams, "invalid_params", err.Error())
	default:
		s.logger.Error("airdrop call failed", "err", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeAirdropInternal, "internal_error", err.Error())
	}
}
