package graphdb

import (
	"errors"

	"graphgate-go/internal/types"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Classify converts a driver error into the operation taxonomy. The store's
// own code and message are kept when the driver reported them.
func Classify(err error, fallback types.ErrorKind) *types.Error {
	if err == nil {
		return nil
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}

	if neo4j.IsConnectivityError(err) {
		return types.WrapError(types.ConnectivityFailure, err.Error(), err)
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return types.WrapError(fallback, neoErr.Msg, err).WithCode(neoErr.Code)
	}

	return types.WrapError(fallback, err.Error(), err)
}
