package model

type Appointment struct {
	ID        string `db:"id" json:"id"`
	PatientID string `db:"patient_id" json:"patientId"`
	Date      string `db:"date" json:"date"`
	Time      string `db:"time" json:"time"`
	Reason    string `db:"reason" json:"reason"`
	Status    string `db:"status" json:"status"`
	DoctorID  string `db:"doctor_id" json:"doctorId"`
}
