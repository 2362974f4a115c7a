package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/apierror"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/ceremony"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/codec"
)

type registerBeginRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName" binding:"required"`
}

type challengeResponse struct {
	ChallengeID string `json:"challengeId"`
	OptionsJSON string `json:"optionsJson"`
}

func (gw *Gateway) registerBeginHandler(c *gin.Context) {
	var req registerBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}

	result, err := gw.ceremony.RegisterBegin(c.Request.Context(), req.Email, req.DisplayName)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	optionsJSON, err := json.Marshal(result.Options)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	c.JSON(http.StatusOK, challengeResponse{
		ChallengeID: result.ChallengeID,
		OptionsJSON: string(optionsJSON),
	})
}

type registerCompleteRequest struct {
	ChallengeID       string `json:"challengeId" binding:"required"`
	CredentialID      string `json:"credentialId"`
	AttestationObject string `json:"attestationObject" binding:"required"`
	ClientDataJSON    string `json:"clientDataJson" binding:"required"`
	DeviceName        string `json:"deviceName"`
}

type sessionPayload struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type registerCompleteResponse struct {
	UserID       string         `json:"userId"`
	CredentialID string         `json:"credentialId"`
	Session      sessionPayload `json:"session"`
}

func (gw *Gateway) registerCompleteHandler(c *gin.Context) {
	var req registerCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}

	attestationObject, err := codec.Decode(req.AttestationObject)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}

	result, err := gw.ceremony.RegisterComplete(c.Request.Context(), ceremony.RegisterCompleteInput{
		ChallengeID:       req.ChallengeID,
		CredentialID:      req.CredentialID,
		AttestationObject: attestationObject,
		ClientDataJSON:    []byte(req.ClientDataJSON),
		DeviceName:        req.DeviceName,
	})
	if err != nil {
		writeAPIError(c, mapCeremonyError(err))
		return
	}

	c.JSON(http.StatusOK, registerCompleteResponse{
		UserID:       result.UserID,
		CredentialID: result.CredentialID,
		Session: sessionPayload{
			Token:     result.Session.Token,
			ExpiresAt: result.Session.ExpiresAt.Format(rfc3339Milli),
		},
	})
}

func (gw *Gateway) loginBeginHandler(c *gin.Context) {
	result, err := gw.ceremony.LoginBegin(c.Request.Context())
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	optionsJSON, err := json.Marshal(result.Options)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	c.JSON(http.StatusOK, challengeResponse{
		ChallengeID: result.ChallengeID,
		OptionsJSON: string(optionsJSON),
	})
}

type loginCompleteRequest struct {
	ChallengeID       string `json:"challengeId" binding:"required"`
	CredentialID      string `json:"credentialId" binding:"required"`
	AuthenticatorData string `json:"authenticatorData" binding:"required"`
	ClientDataJSON    string `json:"clientDataJson" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
	UserHandle        string `json:"userHandle"`
}

type loginCompleteResponse struct {
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Session     sessionPayload `json:"session"`
}

func (gw *Gateway) loginCompleteHandler(c *gin.Context) {
	var req loginCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}

	authenticatorData, err := codec.Decode(req.AuthenticatorData)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}
	signature, err := codec.Decode(req.Signature)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}

	result, err := gw.ceremony.LoginComplete(c.Request.Context(), ceremony.LoginCompleteInput{
		ChallengeID:       req.ChallengeID,
		CredentialID:      req.CredentialID,
		AuthenticatorData: authenticatorData,
		ClientDataJSON:    []byte(req.ClientDataJSON),
		Signature:         signature,
		UserHandle:        req.UserHandle,
	})
	if err != nil {
		writeAPIError(c, mapCeremonyError(err))
		return
	}

	c.JSON(http.StatusOK, loginCompleteResponse{
		UserID:      result.UserID,
		DisplayName: result.DisplayName,
		Session: sessionPayload{
			Token:     result.Session.Token,
			ExpiresAt: result.Session.ExpiresAt.Format(rfc3339Milli),
		},
	})
}

type sessionResponse struct {
	UserID      string   `json:"userId"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
	ExpiresAt   string   `json:"expiresAt"`
}

func (gw *Gateway) sessionHandler(c *gin.Context) {
	sub := currentSubject(c)
	c.JSON(http.StatusOK, sessionResponse{
		UserID:      sub.Claims.Subject,
		DisplayName: sub.Claims.DisplayName,
		Email:       sub.Claims.Email,
		Roles:       sub.Claims.Roles,
		ExpiresAt:   unixMilliString(sub.Claims.ExpiresAt),
	})
}

func (gw *Gateway) logoutHandler(c *gin.Context) {
	sub := currentSubject(c)
	if err := gw.ceremony.Logout(c.Request.Context(), sub.Claims.ID); err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}
	c.Status(http.StatusNoContent)
}
