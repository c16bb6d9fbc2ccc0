package model

// All lists every persisted model in dependency order for migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&LoginHistory{},
		&Contact{},
		&ContactMethod{},
		&SocialLink{},
		&Conversation{},
		&SubscriptionPlan{},
		&PlanPrice{},
		&UserSubscription{},
	}
}
