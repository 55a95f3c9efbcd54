package store

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/backend"
	"github.com/Kerhoff/toyrent/internal/models"
)

const (
	backendDateLayout = "2006-01-02"
	displayDateLayout = "02.01.2006"
)

// FormatBirthDate converts a backend date (YYYY-MM-DD) to the display form
// DD.MM.YYYY. Values that do not parse are returned unchanged.
func FormatBirthDate(s string) string {
	t, err := time.Parse(backendDateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(displayDateLayout)
}

// ParseBirthDate converts a display date back into the backend form. Values
// that do not parse are returned unchanged.
func ParseBirthDate(s string) string {
	t, err := time.Parse(displayDateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(backendDateLayout)
}

// ChildFromDTO converts a backend child without subscriptions
func ChildFromDTO(dto backend.ChildDTO) models.Child {
	return models.Child{
		ID:             dto.ID,
		Name:           dto.Name,
		DateOfBirth:    FormatBirthDate(dto.DateOfBirth),
		Gender:         models.Gender(dto.Gender),
		HasLimitations: dto.HasLimitations,
		Comment:        dto.Comment,
		Interests:      append([]int64{}, dto.Interests...),
		Skills:         append([]int64{}, dto.Skills...),
		Subscriptions:  []models.Subscription{},
	}
}

// SubscriptionFromDTO converts a backend subscription
func SubscriptionFromDTO(dto backend.SubscriptionDTO) models.Subscription {
	sub := models.Subscription{
		ID:      dto.ID,
		UserID:  dto.UserID,
		ChildID: dto.ChildID,
		PlanID:  dto.PlanID,
		Status:  models.SubscriptionStatus(dto.Status),
	}
	if dto.DeliveryInfoID != nil {
		id := *dto.DeliveryInfoID
		sub.DeliveryInfoID = &id
	}
	return sub
}

// PlanFromDTO converts a backend subscription plan
func PlanFromDTO(dto backend.PlanDTO) models.SubscriptionPlan {
	toys := make([]models.ToyConfig, 0, len(dto.Toys))
	for _, t := range dto.Toys {
		toys = append(toys, models.ToyConfig{Category: t.Category, Count: t.Count})
	}
	return models.SubscriptionPlan{
		ID:        dto.ID,
		Name:      dto.Name,
		Price:     dto.Price,
		ToysCount: dto.ToysCount,
		Toys:      toys,
	}
}

// PlansFromDTO converts the plan catalogue
func PlansFromDTO(dtos []backend.PlanDTO) []models.SubscriptionPlan {
	plans := make([]models.SubscriptionPlan, 0, len(dtos))
	for _, dto := range dtos {
		plans = append(plans, PlanFromDTO(dto))
	}
	return plans
}

// AddressFromDTO converts a backend delivery info record
func AddressFromDTO(dto backend.DeliveryInfoDTO) models.DeliveryAddress {
	return models.DeliveryAddress{
		ID:      dto.ID,
		Address: dto.Address,
		Date:    dto.Date,
		Time:    dto.Time,
		Comment: dto.Comment,
	}
}

// ReferencesFromDTO converts an interests or skills list
func ReferencesFromDTO(dtos []backend.ReferenceDTO) []models.Reference {
	refs := make([]models.Reference, 0, len(dtos))
	for _, dto := range dtos {
		refs = append(refs, models.Reference{ID: dto.ID, Name: dto.Name})
	}
	return refs
}

// UserFromDTO assembles the user aggregate. Subscriptions are attached to
// their child by ChildID in backend order; subscriptions whose child is not
// in children are dropped and logged.
func UserFromDTO(profile backend.ProfileDTO, children []backend.ChildDTO, subs []backend.SubscriptionDTO,
	addresses []backend.DeliveryInfoDTO, logger logrus.FieldLogger) *models.User {
	u := &models.User{
		ID:                profile.ID,
		Name:              profile.Name,
		Phone:             profile.Phone,
		HasSubscription:   profile.SubscriptionStatus,
		Children:          make([]models.Child, 0, len(children)),
		DeliveryAddresses: make([]models.DeliveryAddress, 0, len(addresses)),
	}

	index := make(map[int64]int, len(children))
	for _, dto := range children {
		index[dto.ID] = len(u.Children)
		u.Children = append(u.Children, ChildFromDTO(dto))
	}
	for _, dto := range subs {
		i, ok := index[dto.ChildID]
		if !ok {
			logger.WithFields(logrus.Fields{
				"subscription_id": dto.ID,
				"child_id":        dto.ChildID,
			}).Warn("Dropping subscription for unknown child")
			continue
		}
		u.Children[i].Subscriptions = append(u.Children[i].Subscriptions, SubscriptionFromDTO(dto))
	}
	for _, dto := range addresses {
		u.DeliveryAddresses = append(u.DeliveryAddresses, AddressFromDTO(dto))
	}
	return u
}
