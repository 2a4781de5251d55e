package dto

// GraphNotificationBatch is a Microsoft Graph change notification delivery.
type GraphNotificationBatch struct {
	Value []GraphNotification `json:"value"`
}

// GraphNotification is one change notification.
type GraphNotification struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
	ResourceData   struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}
