package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/api/responses"
	"github.com/angelmondragon/walletcore/api/validators"
	"github.com/angelmondragon/walletcore/internal/ads"
	"github.com/angelmondragon/walletcore/internal/payments"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/pagination"
)

func TipSend(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		senderID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendTipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reference, err := validators.Reference(payload.Reference, "reference")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SendTip(r.Context(), payments.TipInput{
			SenderID:    senderID,
			RecipientID: payload.RecipientID,
			Amount:      payload.Amount,
			Reference:   reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdCampaignCreate locks the budget in the advertiser's wallet and opens the
// campaign.
func AdCampaignCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		advertiserID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCampaignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.LockAdBudget(r.Context(), payments.AdBudgetInput{
			AdvertiserID: advertiserID,
			Title:        validators.Text(payload.Title, 200),
			Budget:       payload.Budget,
			Placements:   payload.Placements,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAdBudgetResponse(result))
	}
}

func AdCampaignList(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		advertiserID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaigns, err := svc.ListByAdvertiser(r.Context(), advertiserID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]*campaignResponse, 0, len(campaigns))
		for i := range campaigns {
			items = append(items, newCampaignResponse(&campaigns[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// PremiumCharge upgrades the caller to premium, paid from the wallet or a
// verified gateway payment.
func PremiumCharge(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload premiumRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := enums.ParsePremiumPlan(payload.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}
		method, err := enums.ParseChargeMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
			return
		}

		gatewayRef, err := validators.Reference(payload.GatewayReference, "gateway_reference")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ChargePremium(r.Context(), payments.PremiumInput{
			UserID:           userID,
			Plan:             plan,
			Method:           method,
			GatewayReference: gatewayRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type sendTipRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" validate:"required"`
	Amount      int64     `json:"amount" validate:"gt=0"`
	Reference   string    `json:"reference,omitempty" validate:"omitempty,max=128"`
}

type createCampaignRequest struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Budget     int64    `json:"budget" validate:"gt=0"`
	Placements []string `json:"placements" validate:"omitempty,dive,required"`
}

type premiumRequest struct {
	Plan             string `json:"plan" validate:"required"`
	Method           string `json:"method" validate:"required"`
	GatewayReference string `json:"gateway_reference,omitempty" validate:"omitempty,max=128"`
}
