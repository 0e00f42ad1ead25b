package indexer

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FlexString decodes a JSON string, number or boolean as text; null becomes "".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	iter := jsoniter.ParseBytes(json, data)
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		*f = FlexString(iter.ReadString())
	case jsoniter.NumberValue:
		*f = FlexString(iter.ReadNumber())
	case jsoniter.BoolValue:
		if iter.ReadBool() {
			*f = "true"
		} else {
			*f = "false"
		}
	case jsoniter.NilValue:
		*f = ""
	default:
		return fmt.Errorf("cannot decode %s as text", string(data))
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return iter.Error
	}
	return nil
}

// RawProposal is one element of the allProposals payload
type RawProposal struct {
	ID          FlexString       `json:"id"`
	Proposal    *RawProposalBody `json:"proposal"`
	CreatedAt   FlexString       `json:"createdAt"`
	CompletedAt FlexString       `json:"completedAt"`
}

// RawProposalBody is the nested proposal object
type RawProposalBody struct {
	Title       FlexString `json:"title"`
	Description FlexString `json:"description"`
	Status      FlexString `json:"status"`
}

// RawBalance is one denom -> amount entry of the balances payload
type RawBalance struct {
	Denom  string
	Amount string
}

// DecodeProposals parses an allProposals payload. Well-formed JSON that is
// not an array yields ErrNotArray.
func DecodeProposals(body []byte) ([]RawProposal, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrParse)
	}
	if jsoniter.ParseBytes(json, body).WhatIsNext() != jsoniter.ArrayValue {
		return nil, ErrNotArray
	}

	var raws []RawProposal
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return raws, nil
}

// DecodeBalances parses a balances payload, keeping the document order of
// denoms. A repeated denom keeps its first position and its last value.
// Amounts that are neither strings nor numbers decode as "".
func DecodeBalances(body []byte) ([]RawBalance, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrParse)
	}

	iter := jsoniter.ParseBytes(json, body)
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, fmt.Errorf("%w: expected an object of balances", ErrParse)
	}

	var out []RawBalance
	index := make(map[string]int)
	iter.ReadObjectCB(func(it *jsoniter.Iterator, denom string) bool {
		var amount string
		switch it.WhatIsNext() {
		case jsoniter.StringValue:
			amount = it.ReadString()
		case jsoniter.NumberValue:
			amount = string(it.ReadNumber())
		default:
			it.Skip()
		}

		if i, ok := index[denom]; ok {
			out[i].Amount = amount
			return true
		}
		index[denom] = len(out)
		out = append(out, RawBalance{Denom: denom, Amount: amount})
		return true
	})
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrParse, iter.Error)
	}
	return out, nil
}
