package domain

// DashboardStats - счетчики для шапки панели агента
type DashboardStats struct {
	Total    int `json:"total"`
	Waiting  int `json:"waiting"`
	Active   int `json:"active"`
	Resolved int `json:"resolved"`
}

// Add учитывает обращение с указанным статусом
func (s *DashboardStats) Add(status ConversationStatus, count int) {
	switch status {
	case StatusWaiting:
		s.Waiting += count
	case StatusActive:
		s.Active += count
	case StatusResolved:
		s.Resolved += count
	default:
		return
	}
	s.Total += count
}
