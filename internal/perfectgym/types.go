package perfectgym

// Wire shapes of the client portal API. Only the fields the sniper reads
// are declared.

type loginRequest struct {
	RememberMe bool   `json:"RememberMe"`
	Login      string `json:"Login"`
	Password   string `json:"Password"`
}

type loginResponse struct {
	User *struct {
		Member *struct {
			ID        int64  `json:"Id"`
			FirstName string `json:"FirstName"`
		} `json:"Member"`
	} `json:"User"`
}

type weeklyClassesRequest struct {
	ClubID     int  `json:"clubId"`
	CategoryID *int `json:"categoryId"`
	DaysInWeek int  `json:"daysInWeek"`
}

type weeklyClassesResponse struct {
	CalendarData []struct {
		ZoneName       string `json:"ZoneName"`
		ClassesPerHour []struct {
			ClassesPerDay [][]classItem `json:"ClassesPerDay"`
		} `json:"ClassesPerHour"`
	} `json:"CalendarData"`
}

type classItem struct {
	ID        int64   `json:"Id"`
	Name      string  `json:"Name"`
	StartTime string  `json:"StartTime"`
	Duration  string  `json:"Duration"`
	Status    string  `json:"Status"`
	Trainer   *string `json:"Trainer"`
}

type classDetailsResponse struct {
	ID        int64   `json:"Id"`
	Name      string  `json:"Name"`
	Status    string  `json:"Status"`
	StartTime string  `json:"StartTime"`
	Trainer   *string `json:"Trainer"`
	Users     []struct {
		Status             string `json:"Status"`
		StandByQueueNumber *int   `json:"StandByQueueNumber"`
		User               struct {
			IsCurrentUser bool `json:"IsCurrentUser"`
		} `json:"User"`
	} `json:"Users"`
}

type classRequest struct {
	ClassID int64  `json:"classId"`
	ClubID  string `json:"clubId"`
}

type bookClassResponse struct {
	ClassID int64 `json:"ClassId"`
	Tickets []struct {
		Name      string  `json:"Name"`
		StartTime string  `json:"StartTime"`
		Trainer   *string `json:"Trainer"`
	} `json:"Tickets"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
