package worker

import (
	"github.com/civicdesk/grievance-service/internal/service"
)

// StartNotificationWorker registers notification handlers and the channel
// notifiers used to reach chat complainants.
func StartNotificationWorker(notificationService *service.NotificationService, notifiers map[string]service.Notifier) {
	if notificationService == nil {
		return
	}
	for scheme, notifier := range notifiers {
		notificationService.RegisterNotifier(scheme, notifier)
	}
	notificationService.RegisterHandlers()
}
