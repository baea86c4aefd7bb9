package handler

import "github.com/farmiq/farmiq-backend/internal/core/ports"

const idempotencyHeader = "Idempotency-Key"

func toCreateInstallationInput(userID uint64, key string, req createInstallationRequest) ports.CreateInstallationInput {
	return ports.CreateInstallationInput{
		UserID:          userID,
		FarmerName:      req.FarmerName,
		Phone:           req.Phone,
		PreferredDate:   req.PreferredDate,
		PreferredWindow: req.PreferredWindow,
		Notes:           req.Notes,
		IdempotencyKey:  key,
		Location: ports.LocationInput{
			Lat:      req.Location.Lat,
			Lon:      req.Location.Lon,
			State:    req.Location.State,
			District: req.Location.District,
			Village:  req.Location.Village,
			Landmark: req.Location.Landmark,
		},
	}
}

func toRescheduleInput(userID uint64, req rescheduleRequest) ports.RescheduleInput {
	return ports.RescheduleInput{
		UserID:    userID,
		RequestID: req.ID,
		NewDate:   req.NewDate,
		NewWindow: req.NewWindow,
	}
}
