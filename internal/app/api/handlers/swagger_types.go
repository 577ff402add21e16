package handlers

import (
	"github.com/clubgate/clubgate/internal/app/service/stats"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespLogin wraps LoginResponse in the standard envelope.
type RespLogin struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    LoginResponse            `json:"data"`
}

// RespListPayments wraps ListPaymentsResponse in the standard envelope.
type RespListPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListPaymentsResponse     `json:"data"`
}

// RespMembershipStatistic wraps StatisticResponse in the standard envelope.
type RespMembershipStatistic struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    stats.StatisticResponse  `json:"data"`
}

// RespGrantMembership wraps GrantMembershipResponse in the standard envelope.
type RespGrantMembership struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    GrantMembershipResponse  `json:"data"`
}

// RespRunSweep wraps RunSweepResponse in the standard envelope.
type RespRunSweep struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    RunSweepResponse         `json:"data"`
}

// RespUserListPayments wraps a list of payments in the standard envelope.
type RespUserListPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []PaymentItem            `json:"data"`
}

// RespUserListMemberships wraps a list of memberships in the standard envelope.
type RespUserListMemberships struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Membership      `json:"data"`
}
